package services

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RoundScheduler owns one cancellable deferred finalize per round id. The
// engine only stamps deadlines; the scheduler turns them into
// finalize-if-active callbacks. A manual finalize cancels the timer; if the
// timer loses that race anyway, the resulting RoundNotActive is expected and
// swallowed here.
type RoundScheduler struct {
	clock    clockwork.Clock
	finalize func(sessionID, roundID string) error

	mu     sync.Mutex
	timers map[string]*roundTimer
}

type roundTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func NewRoundScheduler(clock clockwork.Clock) *RoundScheduler {
	return &RoundScheduler{
		clock:  clock,
		timers: make(map[string]*roundTimer),
	}
}

// SetFinalizer wires the scheduler to the facade after both exist.
func (s *RoundScheduler) SetFinalizer(fn func(sessionID, roundID string) error) {
	s.finalize = fn
}

// Schedule registers a one-shot finalize for the round at its deadline,
// replacing any timer already registered for that round id.
func (s *RoundScheduler) Schedule(sessionID, roundID string, deadline time.Time) {
	duration := deadline.Sub(s.clock.Now())
	if duration < 0 {
		duration = 0
	}
	rt := &roundTimer{
		timer:  s.clock.NewTimer(duration),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()
	if existing, ok := s.timers[roundID]; ok {
		stopRoundTimer(existing)
	}
	s.timers[roundID] = rt
	s.mu.Unlock()

	go func() {
		select {
		case <-rt.timer.Chan():
		case <-rt.cancel:
			return
		}

		s.mu.Lock()
		if current, ok := s.timers[roundID]; ok && current == rt {
			delete(s.timers, roundID)
		}
		s.mu.Unlock()

		if s.finalize == nil {
			return
		}
		err := s.finalize(sessionID, roundID)
		switch {
		case err == nil:
			log.Info().Str("session_id", sessionID).Str("round_id", roundID).
				Msg("round finalized on deadline")
		case errors.Is(err, ErrRoundNotActive) || errors.Is(err, ErrRoundAlreadyComplete):
			log.Debug().Str("round_id", roundID).
				Msg("deadline fired after manual finalize")
		default:
			log.Error().Err(err).Str("session_id", sessionID).Str("round_id", roundID).
				Msg("deadline finalize failed")
		}
	}()

	log.Debug().Str("session_id", sessionID).Str("round_id", roundID).
		Time("deadline", deadline).Msg("scheduled round deadline")
}

// Cancel stops and removes the timer for a round, if one is registered.
func (s *RoundScheduler) Cancel(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.timers[roundID]; ok {
		stopRoundTimer(rt)
		delete(s.timers, roundID)
		log.Debug().Str("round_id", roundID).Msg("cancelled round deadline")
	}
}

// stopRoundTimer stops the underlying timer, drains a fire that already
// happened, and releases the waiting goroutine.
func stopRoundTimer(rt *roundTimer) {
	if !rt.timer.Stop() {
		select {
		case <-rt.timer.Chan():
		default:
		}
	}
	close(rt.cancel)
}
