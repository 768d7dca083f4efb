package auth

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the scheduler needs
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc satisfies it once adapted with
// RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// expiryScheduler keeps at most one pending proactive refresh
type expiryScheduler struct {
	afterFunc AfterFunc
	now       func() time.Time
	margin    time.Duration
	fire      func()

	mu    sync.Mutex
	timer Timer
	seq   uint64
	due   time.Time
}

func newExpiryScheduler(afterFunc AfterFunc, now func() time.Time, margin time.Duration, fire func()) *expiryScheduler {
	return &expiryScheduler{
		afterFunc: afterFunc,
		now:       now,
		margin:    margin,
		fire:      fire,
	}
}

// arm schedules a refresh margin before expiresAt, replacing any pending one
func (e *expiryScheduler) arm(expiresAt time.Time) {
	e.armAt(expiresAt.Add(-e.margin))
}

// armAt schedules a refresh at the given instant, or immediately if it has passed
func (e *expiryScheduler) armAt(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.seq++
	seq := e.seq
	e.due = at

	d := at.Sub(e.now())
	if d < 0 {
		d = 0
	}
	e.timer = e.afterFunc(d, func() {
		e.mu.Lock()
		if seq != e.seq {
			e.mu.Unlock()
			return
		}
		e.timer = nil
		e.due = time.Time{}
		e.mu.Unlock()

		e.fire()
	})
}

func (e *expiryScheduler) cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.seq++
	e.due = time.Time{}
}

// next returns the pending fire time, or zero when nothing is armed
func (e *expiryScheduler) next() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.due
}

func (e *expiryScheduler) stopLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
