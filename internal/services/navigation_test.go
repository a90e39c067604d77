package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/nav.ersn.net/server/internal/cache"
	"github.com/dpup/nav.ersn.net/server/internal/config"
	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/navigation"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

// MockProvider is a mock implementation of routing.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Route(ctx context.Context, origin, destination geo.Coordinate, mode routing.TravelMode) (*routing.Route, error) {
	args := m.Called(ctx, origin, destination, mode)
	if r, ok := args.Get(0).(*routing.Route); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	epoch       = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	origin      = geo.Coordinate{Lon: 0, Lat: 0}
	destination = geo.Coordinate{Lon: 0.004, Lat: 0}
)

func testRoute(t *testing.T) *routing.Route {
	t.Helper()
	points := []geo.Coordinate{
		{Lon: 0, Lat: 0},
		{Lon: 0.001, Lat: 0},
		{Lon: 0.002, Lat: 0},
		{Lon: 0.003, Lat: 0},
		{Lon: 0.004, Lat: 0},
	}
	route, err := routing.NewRoute(points, []routing.Instruction{
		{Text: "Head east", IntervalStart: 0, IntervalEnd: 2},
		{Text: "Continue", IntervalStart: 2, IntervalEnd: 4},
		{Text: "Arrive", IntervalStart: 4, IntervalEnd: 4, Sign: routing.SignFinish},
	}, 0, time.Minute)
	require.NoError(t, err)
	return route
}

func newService(provider routing.Provider, clock navigation.Clock) *NavigationService {
	return NewNavigationService(provider, cache.NewCache(nil), config.DefaultConfig(), WithClock(clock))
}

func waitDone(t *testing.T, s *navigation.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not finish, state %s", s.ID(), s.State())
	}
}

func TestPlanRoute_CachesProviderResult(t *testing.T) {
	provider := new(MockProvider)
	route := testRoute(t)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeCar).Return(route, nil).Once()

	svc := newService(provider, navigation.NewManualClock(epoch))

	first, err := svc.PlanRoute(context.Background(), origin, destination, routing.ModeCar)
	require.NoError(t, err)
	second, err := svc.PlanRoute(context.Background(), origin, destination, routing.ModeCar)
	require.NoError(t, err)

	assert.Equal(t, route.Points, first.Points)
	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, first.Instructions, second.Instructions)
	provider.AssertExpectations(t)
}

func TestPlanRoute_ProviderError(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeFoot).Return(nil, routing.ErrNoRoute).Twice()

	svc := newService(provider, navigation.NewManualClock(epoch))

	for i := 0; i < 2; i++ {
		_, err := svc.PlanRoute(context.Background(), origin, destination, routing.ModeFoot)
		assert.ErrorIs(t, err, routing.ErrNoRoute)
	}
	provider.AssertExpectations(t)
}

func TestPlanRoute_WithoutCache(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeCar).Return(testRoute(t), nil).Twice()

	svc := NewNavigationService(provider, nil, nil)
	for i := 0; i < 2; i++ {
		_, err := svc.PlanRoute(context.Background(), origin, destination, routing.ModeCar)
		require.NoError(t, err)
	}
	provider.AssertExpectations(t)
}

func TestStartSession_Simulated(t *testing.T) {
	clock := navigation.NewManualClock(epoch)
	provider := new(MockProvider)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeCar).Return(testRoute(t), nil).Once()

	svc := newService(provider, clock)
	session, err := svc.StartSession(context.Background(), StartRequest{
		Origin:      origin,
		Destination: destination,
		TravelMode:  routing.ModeCar,
		Mode:        navigation.ModeSimulated,
		Speed:       10,
	})
	require.NoError(t, err)

	assert.Equal(t, navigation.StateSimulating, session.State())
	assert.Equal(t, 10, session.Speed())
	got, ok := svc.Session(session.ID())
	require.True(t, ok)
	assert.Same(t, session, got)
	assert.Len(t, svc.Sessions(), 1)

	clock.Advance(time.Second)
	waitDone(t, session)

	summary, ok := session.Summary()
	require.True(t, ok)
	assert.True(t, summary.Arrived)
	_, ok = svc.Session(session.ID())
	assert.False(t, ok, "completed sessions are dropped")
	provider.AssertExpectations(t)
}

func TestStartSession_PlannedRouteSkipsProvider(t *testing.T) {
	provider := new(MockProvider)
	svc := newService(provider, navigation.NewManualClock(epoch))

	session, err := svc.StartSession(context.Background(), StartRequest{
		Route: testRoute(t),
		Mode:  navigation.ModeSimulated,
	})
	require.NoError(t, err)
	assert.Equal(t, navigation.StateSimulating, session.State())
	assert.Equal(t, 1, session.Speed(), "configured default speed")

	provider.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	svc.Shutdown()
	waitDone(t, session)
	assert.Empty(t, svc.Sessions())
}

func TestStartSession_RoutingFailure(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeBike).Return(nil, errors.New("upstream down")).Once()

	svc := newService(provider, navigation.NewManualClock(epoch))
	session, err := svc.StartSession(context.Background(), StartRequest{
		Origin:      origin,
		Destination: destination,
		TravelMode:  routing.ModeBike,
		Mode:        navigation.ModeSimulated,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	assert.Nil(t, session)
	assert.Empty(t, svc.Sessions())
	provider.AssertExpectations(t)
}

func TestStartSession_LiveWithoutStream(t *testing.T) {
	svc := newService(new(MockProvider), navigation.NewManualClock(epoch))

	session, err := svc.StartSession(context.Background(), StartRequest{
		Route: testRoute(t),
		Mode:  navigation.ModeLive,
	})
	assert.ErrorIs(t, err, navigation.ErrPositionUnavailable)
	assert.Nil(t, session)
	assert.Empty(t, svc.Sessions())
}

func TestStartSession_InvalidSpeed(t *testing.T) {
	svc := newService(new(MockProvider), navigation.NewManualClock(epoch))

	_, err := svc.StartSession(context.Background(), StartRequest{
		Route: testRoute(t),
		Mode:  navigation.ModeSimulated,
		Speed: 3,
	})
	assert.ErrorIs(t, err, navigation.ErrInvalidSpeed)
	assert.Empty(t, svc.Sessions())
}

func TestStopSession(t *testing.T) {
	clock := navigation.NewManualClock(epoch)
	svc := newService(new(MockProvider), clock)

	session, err := svc.StartSession(context.Background(), StartRequest{
		Route: testRoute(t),
		Mode:  navigation.ModeSimulated,
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	summary, err := svc.StopSession(session.ID())
	require.NoError(t, err)
	assert.False(t, summary.Arrived)
	assert.Equal(t, 2, summary.SamplesProcessed)
	assert.Equal(t, 2*time.Second, summary.Elapsed())

	_, err = svc.StopSession(session.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStartSession_ListenerSeesStart(t *testing.T) {
	clock := navigation.NewManualClock(epoch)
	provider := new(MockProvider)
	provider.On("Route", mock.Anything, origin, destination, routing.ModeCar).Return(testRoute(t), nil).Once()

	var (
		mu          sync.Mutex
		transitions []navigation.State
		progressed  int
	)
	listener := func(n navigation.Notification) {
		mu.Lock()
		defer mu.Unlock()
		switch n.Kind {
		case navigation.KindStateChanged:
			transitions = append(transitions, n.State)
		case navigation.KindProgress:
			progressed++
		}
	}

	svc := newService(provider, clock)
	session, err := svc.StartSession(context.Background(), StartRequest{
		Origin:      origin,
		Destination: destination,
		TravelMode:  routing.ModeCar,
		Mode:        navigation.ModeSimulated,
		Speed:       10,
		Listener:    listener,
	})
	require.NoError(t, err)

	clock.Advance(time.Second)
	waitDone(t, session)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []navigation.State{
		navigation.StateRouting,
		navigation.StateSimulating,
		navigation.StateCompleted,
	}, transitions)
	assert.Equal(t, len(session.Route().Points), progressed, "every simulated point reaches the listener")
}
