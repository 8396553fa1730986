package schedule

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source for every periodic or delayed action.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers ticks on C like time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer cancels a pending AfterFunc.
type Timer interface {
	Stop() bool
}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Fake is a virtual clock. Time only moves when Advance is called; tickers
// and timers that fall due fire in deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock    *Fake
	deadline time.Time
	period   time.Duration // zero for one-shot timers
	ch       chan time.Time
	fn       func()
	stopped  bool
}

// NewFake returns a virtual clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a virtual ticker. Like time.Ticker, ticks are dropped
// when the reader falls behind.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("schedule: non-positive ticker interval")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{clock: f, deadline: f.now.Add(d), period: d, ch: make(chan time.Time, 1)}
	f.waiters = append(f.waiters, w)
	return w
}

// AfterFunc registers a virtual one-shot timer; fn runs on its own goroutine.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{clock: f, deadline: f.now.Add(d), fn: fn}
	f.waiters = append(f.waiters, w)
	return fakeTimer{w}
}

// Advance moves virtual time forward by d, firing everything that falls due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}
		f.now = next.deadline
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
			select {
			case next.ch <- f.now:
			default:
			}
			continue
		}
		next.stopped = true
		f.prune()
		go next.fn()
	}
	f.now = target
	f.mu.Unlock()
}

// Waiters reports how many tickers and timers are active. Tests use it to
// wait until background goroutines have armed their tickers.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

func (f *Fake) nextDue(target time.Time) *fakeWaiter {
	due := make([]*fakeWaiter, 0, len(f.waiters))
	for _, w := range f.waiters {
		if !w.stopped && !w.deadline.After(target) {
			due = append(due, w)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due[0]
}

func (f *Fake) prune() {
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			kept = append(kept, w)
		}
	}
	f.waiters = kept
}

func (w *fakeWaiter) C() <-chan time.Time { return w.ch }

func (w *fakeWaiter) Stop() {
	w.stop()
}

func (w *fakeWaiter) stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()
	if w.stopped {
		return false
	}
	w.stopped = true
	w.clock.prune()
	return true
}

type fakeTimer struct{ *fakeWaiter }

func (t fakeTimer) Stop() bool { return t.stop() }
