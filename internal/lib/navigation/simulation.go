package navigation

import (
	"time"

	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

// tickPeriod is the base interval scaled by the speed multiplier.
func (s *Session) tickPeriod() time.Duration {
	return s.opts.BaseTickInterval / time.Duration(s.speed)
}

func (s *Session) startTickerLocked() {
	s.sourceGen++
	gen := s.sourceGen
	period := s.tickPeriod()
	s.stopTicker = s.clock.Every(period, func() { s.onTick(gen) })
	s.logger.Debug("Simulation ticker started",
		zap.Duration("period", period),
		zap.Int("speed", s.speed),
		zap.Int("index", s.simIndex))
}

// onTick moves the simulated vehicle to the next route point.
func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.sourceGen || s.state != StateSimulating {
		return
	}
	if s.simIndex >= len(s.route.Points) {
		s.stopLocked("simulation finished")
		return
	}

	// The final point is always within the arrival threshold, so the tracker
	// stops the session there
	sample := position.Sample{
		Coordinate: s.route.Points[s.simIndex],
		Timestamp:  s.clock.Now(),
	}
	s.simIndex++
	s.processSampleLocked(sample)
}
