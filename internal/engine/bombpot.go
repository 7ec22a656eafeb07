package engine

import (
	"time"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// BombPotDecision is the outcome of the bonus-hand scheduler for one
// hand boundary.
type BombPotDecision struct {
	// Fire is true when the next hand is dealt as a bomb pot.
	Fire bool

	// Eligible lists the seats dealt into the bomb pot.
	Eligible []int

	// BetAmount is the forced bet, a configured multiple of the big
	// blind.
	BetAmount int64

	// Due is true when the schedule asked for a bomb pot, whether or
	// not enough seats were eligible. When Due && !Fire the policy
	// state is left untouched so the next boundary can try again.
	Due bool
}

// decideBombPot runs the bonus-hand schedule for the hand about to be
// dealt. A bomb pot never fires on hand 1 and never with fewer than two
// eligible seats.
func decideBombPot(
	state *store.TableState,
	settings *store.GameSettings,
	game *store.Game,
	seats map[int]*store.SeatAssignment,
	now time.Time,
	newHandNum int,
) BombPotDecision {
	decision := BombPotDecision{
		BetAmount: settings.BombPotBetMultiple * game.BigBlind,
	}
	if newHandNum <= 1 {
		return decision
	}

	oneShot := state.NextBombPotHandNum == newHandNum
	if !oneShot && !settings.BombPotEnabled {
		return decision
	}

	switch {
	case oneShot:
		decision.Due = true
	case settings.BombPotEveryHand:
		decision.Due = true
	case settings.BombPotHandInterval > 0:
		decision.Due = newHandNum-state.LastBombPotHandNum >= settings.BombPotHandInterval
	case settings.BombPotInterval > 0:
		decision.Due = !state.LastBombPotAt.IsZero() &&
			now.After(state.LastBombPotAt.Add(settings.BombPotInterval))
	}
	if !decision.Due {
		return decision
	}

	decision.Eligible = eligibleBombPotSeats(seats, decision.BetAmount)
	decision.Fire = len(decision.Eligible) >= 2
	return decision
}

// eligibleBombPotSeats returns the seats that qualify for a bomb pot:
// playing, opted in, and holding at least the forced bet.
func eligibleBombPotSeats(seats map[int]*store.SeatAssignment, betAmount int64) []int {
	var eligible []int
	for seatNo, seat := range seats {
		if seat == nil {
			continue
		}
		if seat.Status != store.SeatPlaying {
			continue
		}
		if !seat.BombPotOptIn {
			continue
		}
		if seat.Stack < betAmount {
			continue
		}
		eligible = append(eligible, seatNo)
	}
	return eligible
}

// SetNextHandBonus arms a one-shot bomb pot for the next hand.
// Operator-only; the recurring schedule is unaffected.
func (e *Engine) SetNextHandBonus(gameCode string, playerID uint64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, playerID); err != nil {
			return err
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		state.NextBombPotHandNum = state.HandNum + 1
		if err := store.UpdateTableState(tx, state); err != nil {
			return err
		}
		e.publish(EventBonusHandScheduled, game.Code, map[string]any{
			"handNum": state.NextBombPotHandNum,
		})
		return nil
	})
}
