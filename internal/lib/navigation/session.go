// Package navigation implements the navigation session: a single-use state
// machine that drives a progress tracker from either a live position stream
// or a simulated vehicle walking the route.
package navigation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
	"github.com/dpup/nav.ersn.net/server/internal/lib/progress"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

// Supported simulation speed multipliers.
var validSpeeds = map[int]bool{1: true, 2: true, 5: true, 10: true}

// ValidSpeed reports whether multiplier is a supported simulation speed.
func ValidSpeed(multiplier int) bool {
	return validSpeeds[multiplier]
}

// DefaultBaseTickInterval is the simulation tick period at 1x.
const DefaultBaseTickInterval = time.Second

// Options configures a Session. Zero values select defaults.
type Options struct {
	// ID overrides the generated session ID.
	ID string

	// ArrivalThresholdMeters defaults to progress.DefaultArrivalThresholdMeters.
	ArrivalThresholdMeters float64

	// BaseTickInterval is the simulation tick period at 1x.
	BaseTickInterval time.Duration

	// SpeedMultiplier is the initial simulation speed, default 1.
	SpeedMultiplier int

	// FirstSampleTimeout bounds the wait for the first live sample. Zero
	// disables the timeout.
	FirstSampleTimeout time.Duration

	// Stream is the live position source. Required for ModeLive.
	Stream position.Stream

	Clock  Clock
	Logger *zap.Logger
}

// Session is a single navigation session. All methods are safe for
// concurrent use and none block on I/O.
//
// A started session holds its position source (a live subscription or the
// simulation ticker) until it arrives or Stop is called. Callers that
// abandon a session must call Stop to release it.
type Session struct {
	id     string
	opts   Options
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	mode     Mode
	route    *routing.Route
	tracker  *progress.Tracker
	snapshot *progress.Snapshot
	summary  *TripSummary

	startedAt time.Time
	speed     int

	// Source bookkeeping. sourceGen is bumped every time a source is
	// attached or detached so stale callbacks can be recognized.
	sourceGen   uint64
	unsubscribe position.Unsubscribe
	stopTicker  func()
	stopTimeout func()
	simIndex    int
	gotSample   bool

	dispatch *dispatcher
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.BaseTickInterval <= 0 {
		opts.BaseTickInterval = DefaultBaseTickInterval
	}
	if !validSpeeds[opts.SpeedMultiplier] {
		opts.SpeedMultiplier = 1
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	logger := opts.Logger.With(zap.String("session_id", opts.ID))
	return &Session{
		id:       opts.ID,
		opts:     opts,
		clock:    opts.Clock,
		logger:   logger,
		state:    StateIdle,
		speed:    opts.SpeedMultiplier,
		dispatch: newDispatcher(logger),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the mode chosen at Start.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Speed returns the current simulation speed multiplier.
func (s *Session) Speed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Route returns the session's route, or nil before Start.
func (s *Session) Route() *routing.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// Snapshot returns a copy of the latest progress snapshot.
func (s *Session) Snapshot() (progress.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return progress.Snapshot{}, false
	}
	return *s.snapshot, true
}

// Summary returns the trip summary once the session has completed.
func (s *Session) Summary() (TripSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return TripSummary{}, false
	}
	return *s.summary, true
}

// Subscribe registers a listener for notifications and returns a func that
// removes it.
func (s *Session) Subscribe(l Listener) func() {
	return s.dispatch.subscribe(l)
}

// Done is closed once the session has completed and every notification has
// been delivered to listeners.
func (s *Session) Done() <-chan struct{} {
	return s.dispatch.done
}

// BeginRouting marks the session as waiting on the route provider.
func (s *Session) BeginRouting() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return &TransitionError{From: s.state, Op: "begin routing"}
	}
	s.transitionLocked(StateRouting)
	return nil
}

// RoutingFailed returns a routing session to Idle and reports err to
// listeners.
func (s *Session) RoutingFailed(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRouting {
		return &TransitionError{From: s.state, Op: "fail routing"}
	}
	s.logger.Warn("Routing failed", zap.Error(err))
	s.transitionLocked(StateIdle)
	s.notifyErrorLocked(err)
	return nil
}

// Start begins navigating route. Route validation and live subscription
// failures are returned synchronously and leave the session startable.
func (s *Session) Start(route *routing.Route, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle && s.state != StateRouting {
		return &TransitionError{From: s.state, Op: "start"}
	}
	if route == nil {
		return fmt.Errorf("start: %w", routing.ErrEmptyRoute)
	}
	if err := route.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if mode != ModeLive && mode != ModeSimulated {
		return fmt.Errorf("start: unknown mode %v", mode)
	}
	if mode == ModeLive && s.opts.Stream == nil {
		return fmt.Errorf("start: %w: no position stream configured", ErrPositionUnavailable)
	}

	s.route = route
	s.mode = mode
	s.tracker = progress.NewTracker(route, s.opts.ArrivalThresholdMeters)
	s.snapshot = nil
	s.simIndex = 0
	s.gotSample = false

	if err := s.attachLocked(); err != nil {
		s.route = nil
		s.tracker = nil
		if s.state == StateRouting {
			s.transitionLocked(StateIdle)
		}
		s.logger.Warn("Failed to attach position source", zap.Error(err))
		return fmt.Errorf("start: %w", err)
	}

	s.startedAt = s.clock.Now()
	s.logger.Info("Session started",
		zap.Stringer("mode", mode),
		zap.Int("points", len(route.Points)),
		zap.Int("instructions", len(route.Instructions)),
		zap.Float64("total_distance_m", route.TotalDistanceMeters))
	s.transitionLocked(mode.activeState())
	return nil
}

// Pause detaches the position source, keeping the last snapshot.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive() {
		return &TransitionError{From: s.state, Op: "pause"}
	}
	s.detachLocked()
	s.transitionLocked(StatePaused)
	return nil
}

// Resume re-attaches the position source. Simulation continues from the
// current route index.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return &TransitionError{From: s.state, Op: "resume"}
	}
	if err := s.attachLocked(); err != nil {
		s.logger.Warn("Failed to re-attach position source", zap.Error(err))
		return fmt.Errorf("resume: %w", err)
	}
	s.transitionLocked(s.mode.activeState())
	return nil
}

// ChangeSpeed sets the simulation speed multiplier (1, 2, 5 or 10). A
// running simulation switches tick period without losing its position.
func (s *Session) ChangeSpeed(multiplier int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeSimulated || (s.state != StateSimulating && s.state != StatePaused) {
		return &TransitionError{From: s.state, Op: "change speed"}
	}
	if !validSpeeds[multiplier] {
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, multiplier)
	}
	if multiplier == s.speed {
		return nil
	}

	s.logger.Info("Changing simulation speed", zap.Int("from", s.speed), zap.Int("to", multiplier))
	s.speed = multiplier
	if s.state == StateSimulating {
		s.detachLocked()
		s.startTickerLocked()
	}
	return nil
}

// Stop detaches any source, records the trip summary and completes the
// session. Stopping a completed session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked("stopped")
}

func (s *Session) stopLocked(reason string) {
	if s.state.IsTerminal() {
		return
	}

	s.detachLocked()
	summary := s.buildSummaryLocked()
	s.summary = &summary

	s.logger.Info("Session completed",
		zap.String("reason", reason),
		zap.Bool("arrived", summary.Arrived),
		zap.Duration("elapsed", summary.Elapsed()),
		zap.Float64("average_speed_kph", summary.AverageSpeedKph),
		zap.Int("samples", summary.SamplesProcessed))

	s.transitionLocked(StateCompleted)

	out := summary
	s.dispatch.enqueue(Notification{
		SessionID: s.id,
		Kind:      KindCompleted,
		State:     StateCompleted,
		Previous:  StateCompleted,
		Snapshot:  s.snapshotCopyLocked(),
		Summary:   &out,
	})
	s.dispatch.close()
}

func (s *Session) buildSummaryLocked() TripSummary {
	now := s.clock.Now()
	started := s.startedAt
	if started.IsZero() {
		started = now
	}

	summary := TripSummary{
		StartedAt: started,
		EndedAt:   now,
	}
	if s.route != nil {
		summary.TotalDistanceMeters = s.route.TotalDistanceMeters
		summary.PlannedDuration = s.route.TotalDuration
	}
	if s.tracker != nil {
		summary.TraveledDistanceMeters = s.tracker.TraveledMeters()
		summary.SamplesProcessed = s.tracker.Samples()
	}
	if s.snapshot != nil {
		summary.Arrived = s.snapshot.Arrived
	}
	summary.AverageSpeedKph = averageSpeedKph(summary.TotalDistanceMeters, summary.Elapsed())
	return summary
}

// attachLocked connects the source for the current mode.
func (s *Session) attachLocked() error {
	if s.mode == ModeSimulated {
		s.startTickerLocked()
		return nil
	}
	return s.subscribeLocked()
}

// detachLocked disconnects whichever source is attached. Callbacks already
// in flight see a new generation and discard their sample.
func (s *Session) detachLocked() {
	s.sourceGen++
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
	if s.stopTimeout != nil {
		s.stopTimeout()
		s.stopTimeout = nil
	}
}

// processSampleLocked runs one sample through the tracker. Failures abort
// only this sample.
func (s *Session) processSampleLocked(sample position.Sample) {
	snap, err := s.tracker.Update(sample.Coordinate, sample.Timestamp)
	if err != nil {
		s.logger.Warn("Discarding position sample", zap.Error(err), zap.Stringer("coordinate", sample.Coordinate))
		s.notifyErrorLocked(err)
		return
	}

	s.snapshot = &snap
	s.logger.Debug("Processed position sample",
		zap.Int("closest_index", snap.ClosestPointIndex),
		zap.Int("instruction", snap.ActiveInstructionIndex),
		zap.Float64("remaining_m", snap.RemainingDistanceMeters),
		zap.Float64("fraction", snap.ProgressFraction))

	s.dispatch.enqueue(Notification{
		SessionID: s.id,
		Kind:      KindProgress,
		State:     s.state,
		Previous:  s.state,
		Snapshot:  s.snapshotCopyLocked(),
	})

	if snap.Arrived {
		s.stopLocked("arrived")
	}
}

func (s *Session) transitionLocked(to State) {
	from := s.state
	if !from.CanTransitionTo(to) {
		// Guarded by every caller; reaching this is a bug.
		panic(fmt.Sprintf("navigation: illegal transition %s -> %s", from, to))
	}
	s.state = to
	s.logger.Info("Session state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	s.dispatch.enqueue(Notification{
		SessionID: s.id,
		Kind:      KindStateChanged,
		State:     to,
		Previous:  from,
		Snapshot:  s.snapshotCopyLocked(),
	})
}

func (s *Session) notifyErrorLocked(err error) {
	s.dispatch.enqueue(Notification{
		SessionID: s.id,
		Kind:      KindError,
		State:     s.state,
		Previous:  s.state,
		Snapshot:  s.snapshotCopyLocked(),
		Err:       err,
	})
}

func (s *Session) snapshotCopyLocked() *progress.Snapshot {
	if s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}
