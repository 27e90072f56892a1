package schedule

import "time"

// Timer is the cancellation handle for a pending callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock time and timer arming so tests can drive the
// scheduler deterministically instead of sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall-clock implementation.
func RealClock() Clock { return realClock{} }
