// Package timerx holds the timer helpers shared by worker loops.
package timerx

import "time"

// Reset stops t, drains a pending fire and re-arms it for d. Negative d fires at once.
func Reset(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		Drain(t)
	}
	t.Reset(d)
}

// Stop stops t and drains a pending fire.
func Stop(t *time.Timer) {
	if !t.Stop() {
		Drain(t)
	}
}

func Drain(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// NewStopped returns a timer that has not been armed.
func NewStopped() *time.Timer {
	t := time.NewTimer(time.Hour)
	Stop(t)
	return t
}
