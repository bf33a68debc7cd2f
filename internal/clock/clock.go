// Package clock supplies the time source for booking windows and hold
// expiry.  Tests substitute their own Clock.
package clock

import "time"

// Clock allows injecting time into the coordinator and sweeper.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
