package wm

// Clock is the monotonic logical clock that issues fact ids.
//
// Fact ids are unique within a session and strictly increasing in
// assertion order. Ids are never reused, even after a retract - a
// retracted id stays dead for the life of the session.
//
// The Store is single-owner, so the clock needs no synchronization.
type Clock struct {
	seq int64
}

// NewClock creates a clock starting at 0; the first id issued is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next fact id and advances the clock.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the most recently issued id without advancing.
func (c *Clock) Current() int64 {
	return c.seq
}
