package navigation

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/progress"
)

// Kind classifies a notification.
type Kind int

const (
	KindStateChanged Kind = iota
	KindProgress
	KindError
	KindCompleted
)

func (k Kind) String() string {
	switch k {
	case KindStateChanged:
		return "state_changed"
	case KindProgress:
		return "progress"
	case KindError:
		return "error"
	case KindCompleted:
		return "completed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Notification is delivered to session listeners for every transition and
// every processed sample. Snapshot and Summary are copies.
type Notification struct {
	SessionID string
	Kind      Kind
	State     State
	Previous  State
	Snapshot  *progress.Snapshot
	Summary   *TripSummary
	Err       error
}

// Listener receives notifications in the order they were produced. Listeners
// run on the session's dispatcher goroutine and may call back into the
// session.
type Listener func(Notification)

type listenerEntry struct {
	id uint64
	l  Listener
}

// dispatcher delivers queued notifications on its own goroutine so the
// session never calls a listener while holding its lock.
// The delivery goroutine only lives while the queue is non-empty, so a
// dropped session holds no goroutine.
type dispatcher struct {
	logger *zap.Logger

	mu        sync.Mutex
	queue     []Notification
	listeners []listenerEntry
	nextID    uint64
	running   bool
	closed    bool
	done      chan struct{}
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) subscribe(l Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listenerEntry{id: id, l: l})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, e := range d.listeners {
			if e.id == id {
				d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

func (d *dispatcher) enqueue(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.queue = append(d.queue, n)
	if !d.running {
		d.running = true
		go d.run()
	}
}

// close stops accepting notifications. done is closed once everything
// already queued has been delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if !d.running {
		close(d.done)
	}
}

// idle reports whether no delivery goroutine is running.
func (d *dispatcher) idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.running
}

func (d *dispatcher) run() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			if d.closed {
				close(d.done)
			}
			d.mu.Unlock()
			return
		}
		n := d.queue[0]
		d.queue = d.queue[1:]
		listeners := d.listeners
		d.mu.Unlock()

		for _, e := range listeners {
			d.deliver(e.l, n)
		}
	}
}

func (d *dispatcher) deliver(l Listener, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Listener panicked", zap.Any("panic", r), zap.Stringer("kind", n.Kind))
		}
	}()
	l(n)
}
