package navigation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

func (s *Session) subscribeLocked() error {
	s.sourceGen++
	gen := s.sourceGen

	unsubscribe, err := s.opts.Stream.Subscribe(func(sample position.Sample) {
		s.onLiveSample(gen, sample)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	s.unsubscribe = unsubscribe

	if !s.gotSample && s.opts.FirstSampleTimeout > 0 {
		s.stopTimeout = s.clock.AfterFunc(s.opts.FirstSampleTimeout, func() { s.onFirstSampleTimeout(gen) })
	}
	return nil
}

func (s *Session) onLiveSample(gen uint64, sample position.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.sourceGen || s.state != StateNavigating {
		s.logger.Debug("Dropping sample from detached stream")
		return
	}
	if !s.gotSample {
		s.gotSample = true
		if s.stopTimeout != nil {
			s.stopTimeout()
			s.stopTimeout = nil
		}
	}
	s.processSampleLocked(sample)
}

// onFirstSampleTimeout returns the session to Idle when the stream stayed
// silent, so Start can be retried.
func (s *Session) onFirstSampleTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.sourceGen || s.state != StateNavigating || s.gotSample {
		return
	}

	s.logger.Warn("No position sample received", zap.Duration("timeout", s.opts.FirstSampleTimeout))
	s.stopTimeout = nil
	s.detachLocked()
	s.route = nil
	s.tracker = nil
	s.startedAt = time.Time{}
	s.transitionLocked(StateIdle)
	s.notifyErrorLocked(fmt.Errorf("%w: no sample within %s", ErrPositionUnavailable, s.opts.FirstSampleTimeout))
}
