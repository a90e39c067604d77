package navigation

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for sessions so simulation can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time

	// Every calls f every d until the returned stop func is called. Calls
	// are never concurrent with each other.
	Every(d time.Duration, f func()) (stop func())

	// AfterFunc calls f once after d unless stopped first.
	AfterFunc(d time.Duration, f func()) (stop func())
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Every(d time.Duration, f func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// Both cases may be ready; prefer stopping
				select {
				case <-done:
					return
				default:
				}
				f()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (systemClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// ManualClock is a Clock that only moves when Advance is called. Timer
// callbacks run synchronously on the goroutine calling Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	due    time.Time
	period time.Duration
	seq    uint64
	f      func()
}

// NewManualClock creates a manual clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Every implements Clock.
func (c *ManualClock) Every(d time.Duration, f func()) func() {
	if d <= 0 {
		panic("navigation: non-positive interval for ManualClock.Every")
	}
	return c.schedule(d, d, f)
}

// AfterFunc implements Clock.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) func() {
	return c.schedule(d, 0, f)
}

func (c *ManualClock) schedule(delay, period time.Duration, f func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{due: c.now.Add(delay), period: period, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.remove(t)
	}
}

func (c *ManualClock) remove(t *manualTimer) {
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every timer that falls due
// in order of due time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].due.Equal(c.timers[j].due) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].due.Before(c.timers[j].due)
		})
		if len(c.timers) == 0 || c.timers[0].due.After(target) {
			break
		}

		t := c.timers[0]
		c.now = t.due
		if t.period > 0 {
			t.due = t.due.Add(t.period)
		} else {
			c.remove(t)
		}

		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of scheduled timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
