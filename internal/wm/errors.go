package wm

import (
	"errors"
	"fmt"
)

// DuplicateFactError reports an assertion of knowledge that is already
// live. Recoverable: the fact already holds, the store is unchanged.
// ExistingID identifies the live fact carrying the same (kind, attrs).
type DuplicateFactError struct {
	Kind       string
	Hash       string
	ExistingID int64
}

func (e *DuplicateFactError) Error() string {
	return fmt.Sprintf("duplicate fact: kind %q already live as fact %d", e.Kind, e.ExistingID)
}

// UnknownFactError reports a retract of a fact id that is not live -
// either never asserted or already retracted. Recoverable.
type UnknownFactError struct {
	ID int64
}

func (e *UnknownFactError) Error() string {
	return fmt.Sprintf("unknown fact: id %d is not live", e.ID)
}

// IsDuplicateFact reports whether err is a DuplicateFactError.
// Uses errors.As to handle wrapped errors.
func IsDuplicateFact(err error) bool {
	var de *DuplicateFactError
	return errors.As(err, &de)
}

// IsUnknownFact reports whether err is an UnknownFactError.
// Uses errors.As to handle wrapped errors.
func IsUnknownFact(err error) bool {
	var ue *UnknownFactError
	return errors.As(err, &ue)
}
