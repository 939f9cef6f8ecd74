package engine

import (
	"errors"
	"fmt"
)

// CycleLimitError reports a session that hit the configured cycle
// ceiling before reaching quiescence. Fatal to the session, never to
// other concurrent sessions or the shared rule library.
//
// LastFirings carries the tail of the firing log to aid debugging of
// oscillating rule sets (assert/retract loops).
type CycleLimitError struct {
	Session     string
	Cycles      int
	Limit       int
	LastFirings []FiringRecord
}

func (e *CycleLimitError) Error() string {
	return fmt.Sprintf("cycle limit exceeded: session %s fired %d rules (limit %d)", e.Session, e.Cycles, e.Limit)
}

// IsCycleLimit reports whether err is a CycleLimitError.
// Uses errors.As to handle wrapped errors.
func IsCycleLimit(err error) bool {
	var ce *CycleLimitError
	return errors.As(err, &ce)
}

// ErrSessionEnded is returned by operations on a session after End.
var ErrSessionEnded = errors.New("session has ended")

// ErrInferenceRunning is returned when observations are asserted while
// an inference run is in progress. The session API is usable only
// before or between runs.
var ErrInferenceRunning = errors.New("inference run in progress")
