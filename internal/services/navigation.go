package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/cache"
	"github.com/dpup/nav.ersn.net/server/internal/config"
	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/navigation"
	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

// ErrSessionNotFound is returned for an unknown or completed session ID.
var ErrSessionNotFound = errors.New("session not found")

// StartRequest describes a session to plan and start.
type StartRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	TravelMode  routing.TravelMode
	Mode        navigation.Mode

	// Route skips planning when set.
	Route *routing.Route

	// Speed overrides the configured default simulation speed.
	Speed int

	// Listener, when set, is subscribed before the session starts so it
	// sees every notification.
	Listener navigation.Listener
}

// NavigationService plans routes and owns the running sessions
type NavigationService struct {
	provider routing.Provider
	cache    *cache.Cache
	config   *config.Config
	stream   position.Stream
	clock    navigation.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*navigation.Session
}

// Option customizes a NavigationService.
type Option func(*NavigationService)

// WithStream sets the live position stream handed to new sessions.
func WithStream(stream position.Stream) Option {
	return func(s *NavigationService) { s.stream = stream }
}

// WithClock sets the clock handed to new sessions.
func WithClock(clock navigation.Clock) Option {
	return func(s *NavigationService) { s.clock = clock }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *NavigationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNavigationService creates a new NavigationService. routeCache may be
// nil to disable route caching.
func NewNavigationService(provider routing.Provider, routeCache *cache.Cache, cfg *config.Config, opts ...Option) *NavigationService {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &NavigationService{
		provider: provider,
		cache:    routeCache,
		config:   cfg,
		clock:    navigation.SystemClock(),
		logger:   zap.NewNop(),
		sessions: make(map[string]*navigation.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlanRoute returns a route from the cache, or from the provider on a miss.
func (s *NavigationService) PlanRoute(ctx context.Context, origin, destination geo.Coordinate, mode routing.TravelMode) (*routing.Route, error) {
	logger := s.logger.With(
		zap.Stringer("origin", origin),
		zap.Stringer("destination", destination),
		zap.String("travel_mode", string(mode)))

	if s.cache != nil {
		route, found, err := s.cache.GetRoute(origin, destination, mode)
		if err != nil {
			logger.Warn("Route cache error", zap.Error(err))
		}
		if found {
			logger.Debug("Route cache hit")
			return route, nil
		}
	}

	if s.provider == nil {
		return nil, fmt.Errorf("no route provider configured: %w", routing.ErrNoRoute)
	}

	route, err := s.provider.Route(ctx, origin, destination, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to plan route: %w", err)
	}
	logger.Info("Planned route",
		zap.Float64("distance_m", route.TotalDistanceMeters),
		zap.Duration("duration", route.TotalDuration),
		zap.Int("instructions", len(route.Instructions)))

	if s.cache != nil {
		if err := s.cache.SetRoute(origin, destination, mode, route, s.config.Cache.RouteTTL); err != nil {
			logger.Warn("Failed to cache route", zap.Error(err))
		}
	}
	return route, nil
}

// NewSession creates and registers an idle session configured from the
// service settings. The session is dropped from the registry once it
// completes.
func (s *NavigationService) NewSession(speed int) *navigation.Session {
	if speed == 0 {
		speed = s.config.Navigation.DefaultSpeed
	}
	session := navigation.NewSession(navigation.Options{
		ArrivalThresholdMeters: s.config.Navigation.ArrivalThresholdMeters,
		BaseTickInterval:       s.config.Navigation.BaseTickInterval,
		SpeedMultiplier:        speed,
		FirstSampleTimeout:     s.config.Navigation.FirstSampleTimeout,
		Stream:                 s.stream,
		Clock:                  s.clock,
		Logger:                 s.logger,
	})

	id := session.ID()
	session.Subscribe(func(n navigation.Notification) {
		if n.Kind == navigation.KindCompleted {
			s.remove(id)
		}
	})

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	return session
}

// StartSession plans the requested route and starts a session on it. A
// failed plan or start completes and discards the session.
func (s *NavigationService) StartSession(ctx context.Context, req StartRequest) (*navigation.Session, error) {
	if req.Speed != 0 && !navigation.ValidSpeed(req.Speed) {
		return nil, fmt.Errorf("%w: %d", navigation.ErrInvalidSpeed, req.Speed)
	}

	session := s.NewSession(req.Speed)
	if req.Listener != nil {
		session.Subscribe(req.Listener)
	}
	discard := func() {
		s.remove(session.ID())
		session.Stop()
	}

	route := req.Route
	if route == nil {
		if err := session.BeginRouting(); err != nil {
			discard()
			return nil, err
		}
		planned, err := s.PlanRoute(ctx, req.Origin, req.Destination, req.TravelMode)
		if err != nil {
			_ = session.RoutingFailed(err)
			discard()
			return nil, err
		}
		route = planned
	}

	if err := session.Start(route, req.Mode); err != nil {
		discard()
		return nil, err
	}
	return session, nil
}

// Session returns a registered session.
func (s *NavigationService) Session(id string) (*navigation.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Sessions returns the registered sessions ordered by ID.
func (s *NavigationService) Sessions() []*navigation.Session {
	s.mu.Lock()
	out := make([]*navigation.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StopSession stops a registered session and returns its trip summary.
func (s *NavigationService) StopSession(id string) (navigation.TripSummary, error) {
	session, ok := s.Session(id)
	if !ok {
		return navigation.TripSummary{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session.Stop()
	s.remove(id)

	summary, _ := session.Summary()
	return summary, nil
}

// Shutdown stops every registered session.
func (s *NavigationService) Shutdown() {
	for _, session := range s.Sessions() {
		session.Stop()
		s.remove(session.ID())
	}
}

func (s *NavigationService) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
