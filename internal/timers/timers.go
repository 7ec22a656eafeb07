// Package timers schedules the engine's deferred callbacks: buy-in
// clocks, approval deadlines, seat-change prompts, breaks, and dealer
// choice prompts. Timers are keyed by (game, player, purpose);
// scheduling the same key again replaces the earlier deadline.
package timers

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// Handler receives expired timers. Bound after construction to break
// the cycle between the timer service and its consumer.
type Handler func(gameID, playerID uint64, purpose store.TimerPurpose)

type key struct {
	gameID   uint64
	playerID uint64
	purpose  store.TimerPurpose
}

// Service is an in-process timer table driven by an injectable clock.
type Service struct {
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	handler Handler
	pending map[key]*quartz.Timer
}

func New(clock quartz.Clock, logger *log.Logger) *Service {
	return &Service{
		clock:   clock,
		logger:  logger.WithPrefix("timers"),
		pending: make(map[key]*quartz.Timer),
	}
}

// Bind sets the expiry handler. Must be called before any timer fires.
func (s *Service) Bind(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Schedule arms a timer for the key, replacing any earlier one.
func (s *Service) Schedule(gameID, playerID uint64, purpose store.TimerPurpose, expiresAt time.Time) {
	k := key{gameID, playerID, purpose}
	d := expiresAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[k]; ok {
		t.Stop()
	}
	s.pending[k] = s.clock.AfterFunc(d, func() {
		s.fire(k)
	})
	s.logger.Debug("timer armed",
		"game", gameID, "player", playerID, "purpose", purpose, "in", d)
}

// Cancel disarms the timer for the key, if armed.
func (s *Service) Cancel(gameID, playerID uint64, purpose store.TimerPurpose) {
	k := key{gameID, playerID, purpose}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[k]; ok {
		t.Stop()
		delete(s.pending, k)
	}
}

// Stop disarms every timer. Used on shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.pending {
		t.Stop()
		delete(s.pending, k)
	}
}

func (s *Service) fire(k key) {
	s.mu.Lock()
	delete(s.pending, k)
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		s.logger.Warn("timer fired with no handler bound",
			"game", k.gameID, "player", k.playerID, "purpose", k.purpose)
		return
	}
	h(k.gameID, k.playerID, k.purpose)
}
