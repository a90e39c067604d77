package navigation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func TestManualClock_Every(t *testing.T) {
	clock := NewManualClock(epoch)

	var fired []time.Time
	stop := clock.Every(time.Second, func() { fired = append(fired, clock.Now()) })

	clock.Advance(500 * time.Millisecond)
	assert.Empty(t, fired)

	clock.Advance(3 * time.Second)
	assert.Equal(t, []time.Time{
		epoch.Add(1 * time.Second),
		epoch.Add(2 * time.Second),
		epoch.Add(3 * time.Second),
	}, fired)
	assert.Equal(t, epoch.Add(3500*time.Millisecond), clock.Now())

	stop()
	stop()
	clock.Advance(10 * time.Second)
	assert.Len(t, fired, 3)
	assert.Equal(t, 0, clock.Pending())
}

func TestManualClock_AfterFunc(t *testing.T) {
	clock := NewManualClock(epoch)

	calls := 0
	clock.AfterFunc(2*time.Second, func() { calls++ })
	cancelled := clock.AfterFunc(time.Second, func() { calls += 100 })
	cancelled()

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, clock.Pending())
}

func TestManualClock_CallbackCanStopItself(t *testing.T) {
	clock := NewManualClock(epoch)

	calls := 0
	var stop func()
	stop = clock.Every(time.Second, func() {
		calls++
		if calls == 2 {
			stop()
		}
	})

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, calls)
}

func TestManualClock_OrdersByDueTime(t *testing.T) {
	clock := NewManualClock(epoch)

	var order []string
	clock.Every(300*time.Millisecond, func() { order = append(order, "slow") })
	clock.Every(200*time.Millisecond, func() { order = append(order, "fast") })

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, []string{"fast", "slow", "fast", "slow", "fast"}, order, "ties fire in scheduling order")
}

func TestSystemClock_Every(t *testing.T) {
	clock := SystemClock()

	ticks := make(chan struct{}, 1)
	stop := clock.Every(5*time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	defer stop()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}
