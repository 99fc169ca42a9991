package kafkaconnector

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or the timer was already stopped.
	Stop() bool
}

// Scheduler runs a callback once after a delay. Callbacks may run on any
// goroutine; the connector moves them onto its own.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

type timeScheduler struct{}

// NewTimeScheduler returns a Scheduler backed by time.AfterFunc.
func NewTimeScheduler() Scheduler {
	return timeScheduler{}
}

func (timeScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { withRecover(fn) })
}
