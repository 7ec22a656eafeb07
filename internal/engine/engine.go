// Package engine implements the hand-transition and table-state
// orchestration for a live card-game table: button and blind
// computation, bomb-pot scheduling, variant rotation, the buy-in
// approval workflow, both seat-change state machines, and the
// pending-update queue drained between hands.
//
// The engine is purely reactive. Every operation is invoked
// synchronously by an external actor (player, host, or the real-time
// game engine) and runs inside a single database transaction; there is
// no in-process lock around game state.
package engine

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/clubpoker/tablekeeper/internal/config"
	"github.com/clubpoker/tablekeeper/internal/store"
)

// Membership is the club-side view of a player consulted by the buy-in
// workflow. CreditLimit nil means no limit applies.
type Membership struct {
	AutoApproval bool
	IsOwner      bool
	IsManager    bool
	CreditLimit  *int64
}

// Memberships supplies club membership data. Read-only from the
// engine's perspective.
type Memberships interface {
	// Member returns the membership for a (club, player) pair.
	Member(clubCode string, playerID uint64) (*Membership, error)

	// OutstandingBuyins sums the player's buy-ins across this club's
	// running and recently ended games.
	OutstandingBuyins(clubCode string, playerID uint64) (int64, error)
}

// TimerService schedules cancellable out-of-process callbacks keyed by
// (game, player, purpose). Firing re-enters the engine through
// HandleTimerExpiry.
type TimerService interface {
	Schedule(gameID, playerID uint64, purpose store.TimerPurpose, expiresAt time.Time)
	Cancel(gameID, playerID uint64, purpose store.TimerPurpose)
}

// Engine orchestrates all table-state mutations.
type Engine struct {
	store    *store.Store
	clock    quartz.Clock
	timers   TimerService
	clubs    Memberships
	notifier Notifier
	settings config.EngineSettings
	logger   *log.Logger
}

// New constructs the engine. The clock is injected so tests can drive
// bomb-pot and timer behavior with a mock.
func New(
	st *store.Store,
	clock quartz.Clock,
	timers TimerService,
	clubs Memberships,
	notifier Notifier,
	settings config.EngineSettings,
	logger *log.Logger,
) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:    st,
		clock:    clock,
		timers:   timers,
		clubs:    clubs,
		notifier: notifier,
		settings: settings,
		logger:   logger.WithPrefix("engine"),
	}
}

// HandleTimerExpiry is the callback target for the timer service. It
// dispatches to the matching expiration handler, each of which runs
// through the normal transactional path.
func (e *Engine) HandleTimerExpiry(gameID, playerID uint64, purpose store.TimerPurpose) {
	var err error
	switch purpose {
	case store.PurposeBuyin:
		err = e.buyinTimerExpired(gameID, playerID)
	case store.PurposeBuyinApproval:
		err = e.buyinApprovalExpired(gameID, playerID)
	case store.PurposeSeatChange:
		err = e.seatChangePromptExpired(gameID)
	case store.PurposeBreak:
		err = e.breakExpired(gameID, playerID)
	case store.PurposeDealerChoice:
		err = e.dealerChoiceExpired(gameID)
	}
	if err != nil {
		e.logger.Error("timer expiry handler failed",
			"game", gameID, "player", playerID, "purpose", purpose, "error", err)
	}
}
