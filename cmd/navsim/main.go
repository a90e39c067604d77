// Command navsim plans a route and drives a navigation session along it,
// either simulated at a chosen speed or from live Kafka position samples.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dpup/nav.ersn.net/server/internal/cache"
	"github.com/dpup/nav.ersn.net/server/internal/clients/graphhopper"
	"github.com/dpup/nav.ersn.net/server/internal/clients/telemetry"
	"github.com/dpup/nav.ersn.net/server/internal/config"
	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/kmlexport"
	"github.com/dpup/nav.ersn.net/server/internal/lib/navigation"
	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
	"github.com/dpup/nav.ersn.net/server/internal/services"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (optional, NAV_ env vars override)")
		originStr  = flag.String("origin", "38.067400,-120.540200", "Origin coordinates (lat,lon)")
		destStr    = flag.String("dest", "38.139117,-120.456111", "Destination coordinates (lat,lon)")
		travelMode = flag.String("travel-mode", "car", "GraphHopper profile: car, bike, foot, motorcycle")
		routeFile  = flag.String("route", "", "GraphHopper JSON response to use instead of calling the API")
		modeStr    = flag.String("mode", "simulated", "Session mode: simulated or live")
		speed      = flag.Int("speed", 0, "Simulation speed multiplier: 1, 2, 5 or 10 (default from config)")
		kmlPath    = flag.String("kml", "", "Write the route and traveled track as KML to this file")
		publish    = flag.Bool("publish", false, "Publish simulated positions to the telemetry topic")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Navigation Simulator\n\n")
		fmt.Printf("Plans a route and follows it turn by turn.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  NAV_GRAPHHOPPER__API_KEY=your_key %s -speed=10\n", os.Args[0])
		fmt.Printf("  %s -route=route.json -speed=5 -kml=trip.kml\n", os.Args[0])
		fmt.Printf("  %s -config=navsim.yaml -mode=live\n", os.Args[0])
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, runOptions{
		origin:     *originStr,
		dest:       *destStr,
		travelMode: *travelMode,
		routeFile:  *routeFile,
		mode:       *modeStr,
		speed:      *speed,
		kmlPath:    *kmlPath,
		publish:    *publish,
	}); err != nil {
		logger.Fatal("navsim failed", zap.Error(err))
	}
}

type runOptions struct {
	origin, dest string
	travelMode   string
	routeFile    string
	mode         string
	speed        int
	kmlPath      string
	publish      bool
}

func run(cfg *config.Config, logger *zap.Logger, opts runOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mode, err := navigation.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	tm, err := routing.ParseTravelMode(opts.travelMode)
	if err != nil {
		return err
	}
	origin, err := parseLatLon(opts.origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	dest, err := parseLatLon(opts.dest)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}

	routeCache := cache.NewCache(logger)
	routeCache.StartPeriodicCleanup(ctx, cfg.Cache.CleanupInterval)

	client := graphhopper.NewClient(graphhopper.Config{
		BaseURL: cfg.GraphHopper.BaseURL,
		APIKey:  cfg.GraphHopper.APIKey,
		Locale:  cfg.GraphHopper.Locale,
		Timeout: cfg.GraphHopper.Timeout,
	}, logger)

	svcOpts := []services.Option{services.WithLogger(logger)}
	if mode == navigation.ModeLive {
		if !cfg.Telemetry.Enabled() {
			return errors.New("live mode requires telemetry.brokers")
		}
		svcOpts = append(svcOpts, services.WithStream(telemetry.NewStream(telemetryConfig(cfg.Telemetry), logger)))
	}
	svc := services.NewNavigationService(client, routeCache, cfg, svcOpts...)
	defer svc.Shutdown()

	req := services.StartRequest{
		Origin:      origin,
		Destination: dest,
		TravelMode:  tm,
		Mode:        mode,
		Speed:       opts.speed,
	}
	if opts.routeFile != "" {
		if req.Route, err = loadRoute(opts.routeFile); err != nil {
			return err
		}
	}

	var publisher *telemetry.Publisher
	if opts.publish {
		if !cfg.Telemetry.Enabled() {
			return errors.New("-publish requires telemetry.brokers")
		}
		publisher = telemetry.NewPublisher(telemetryConfig(cfg.Telemetry), logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close publisher", zap.Error(err))
			}
		}()
	}

	tr := &trip{logger: logger}
	if publisher != nil && mode == navigation.ModeSimulated {
		tr.publish = func(sessionID string, s position.Sample) {
			if err := publisher.Publish(ctx, sessionID, s); err != nil {
				logger.Warn("Failed to publish position", zap.Error(err))
			}
		}
	}
	req.Listener = tr.listen

	session, err := svc.StartSession(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	route := session.Route()
	fmt.Printf("Route: %.2f km, %s planned, %d instructions\n",
		route.TotalDistanceMeters/1000, route.TotalDuration, len(route.Instructions))

	select {
	case <-session.Done():
	case <-ctx.Done():
		logger.Info("Interrupted, stopping session")
		if _, err := svc.StopSession(session.ID()); err != nil && !errors.Is(err, services.ErrSessionNotFound) {
			return err
		}
		<-session.Done()
	}

	summary, ok := session.Summary()
	if ok {
		printSummary(summary)
	}

	if opts.kmlPath != "" {
		if err := writeKML(opts.kmlPath, route, tr.track(), summary, ok); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", opts.kmlPath)
	}
	return nil
}

// trip logs notifications and records the traveled track.
type trip struct {
	logger  *zap.Logger
	publish func(sessionID string, s position.Sample)

	mu        sync.Mutex
	positions []geo.Coordinate
	lastInst  int
}

func (t *trip) listen(n navigation.Notification) {
	switch n.Kind {
	case navigation.KindStateChanged:
		t.logger.Info("State changed", zap.Stringer("from", n.Previous), zap.Stringer("to", n.State))
	case navigation.KindError:
		t.logger.Warn("Session error", zap.Error(n.Err))
	case navigation.KindProgress:
		snap := n.Snapshot
		t.mu.Lock()
		t.positions = append(t.positions, snap.Position)
		changed := len(t.positions) == 1 || snap.ActiveInstructionIndex != t.lastInst
		t.lastInst = snap.ActiveInstructionIndex
		t.mu.Unlock()

		if changed {
			fmt.Printf("  [%3.0f%%] instruction %d\n", snap.ProgressFraction*100, snap.ActiveInstructionIndex+1)
		}
		t.logger.Debug("Progress",
			zap.Int("closest_point", snap.ClosestPointIndex),
			zap.Int("instruction", snap.ActiveInstructionIndex),
			zap.Float64("remaining_m", snap.RemainingDistanceMeters),
			zap.Float64("next_maneuver_m", snap.DistanceToNextManeuverMeters),
			zap.Float64("bearing", snap.Bearing))

		if t.publish != nil {
			t.publish(n.SessionID, position.Sample{Coordinate: snap.Position, Timestamp: snap.Timestamp})
		}
	}
}

func (t *trip) track() []geo.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]geo.Coordinate(nil), t.positions...)
}

func printSummary(s navigation.TripSummary) {
	fmt.Printf("\nTrip summary\n")
	fmt.Printf("============\n")
	fmt.Printf("Elapsed:       %s\n", s.Elapsed())
	fmt.Printf("Distance:      %.2f km (traveled %.2f km)\n", s.TotalDistanceMeters/1000, s.TraveledDistanceMeters/1000)
	fmt.Printf("Planned:       %s\n", s.PlannedDuration)
	fmt.Printf("Average speed: %.1f km/h\n", s.AverageSpeedKph)
	fmt.Printf("Samples:       %d\n", s.SamplesProcessed)
	fmt.Printf("Arrived:       %t\n", s.Arrived)
}

func writeKML(path string, route *routing.Route, track []geo.Coordinate, summary navigation.TripSummary, haveSummary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	opts := kmlexport.Options{Name: "navsim trip", Track: track}
	if haveSummary {
		opts.Summary = &summary
	}
	if err := kmlexport.Write(f, route, opts); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func loadRoute(path string) (*routing.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route file: %w", err)
	}
	defer f.Close()

	route, err := graphhopper.ParseResponse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return route, nil
}

func parseLatLon(s string) (geo.Coordinate, error) {
	var lat, lon float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lon); err != nil {
		return geo.Coordinate{}, err
	}
	return geo.NewCoordinate(lon, lat)
}

func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{Brokers: c.Brokers, Topic: c.Topic, GroupID: c.GroupID}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
