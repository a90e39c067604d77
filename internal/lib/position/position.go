// Package position defines position samples and the continuous position
// stream consumed by live navigation sessions.
package position

import (
	"errors"
	"sync"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
)

// ErrAlreadySubscribed is returned when a stream already has an active
// subscriber.
var ErrAlreadySubscribed = errors.New("position stream already has an active subscription")

// Sample is a single position fix.
type Sample struct {
	Coordinate     geo.Coordinate `json:"coordinate"`
	AccuracyMeters *float64       `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Handler receives samples. A stream delivers samples to a handler one at a
// time and in order; a slow handler makes the stream lag, not drop.
type Handler func(Sample)

// Unsubscribe detaches a subscription. It is safe to call more than once.
// A sample already in flight may still reach the handler after it returns.
type Unsubscribe func()

// Stream is a source of continuous position samples supporting at most one
// active subscription. Subscribe must not call the handler before it
// returns.
type Stream interface {
	Subscribe(handler Handler) (Unsubscribe, error)
}

// Feed is an in-memory Stream. Samples published with Publish are
// delivered synchronously to the current subscriber, if any.
type Feed struct {
	mu      sync.Mutex
	handler Handler
	gen     uint64
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe implements Stream.
func (f *Feed) Subscribe(handler Handler) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handler != nil {
		return nil, ErrAlreadySubscribed
	}
	f.gen++
	gen := f.gen
	f.handler = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.gen == gen {
				f.handler = nil
			}
		})
	}, nil
}

// Publish delivers the sample to the subscriber and reports whether one was
// attached.
func (f *Feed) Publish(s Sample) bool {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(s)
	return true
}

// Subscribed reports whether the feed has an active subscriber.
func (f *Feed) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Accuracy is a helper for building samples with a known accuracy.
func Accuracy(meters float64) *float64 {
	return &meters
}
