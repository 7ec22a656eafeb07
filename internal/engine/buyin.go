package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// BuyinResult reports the outcome of a buy-in or reload request.
type BuyinResult struct {
	// Approved is true when the amount was applied to the stack, either
	// immediately or as a deferred pending update.
	Approved bool

	// Deferred is true when the amount is applied at the next hand
	// boundary instead of immediately.
	Deferred bool

	// Status is the player status reported back to the caller.
	Status store.SeatStatus

	// AvailableCredit is set when a credit limit was consulted.
	AvailableCredit *int64
}

// RequestBuyIn validates and applies a bankroll change. Amounts that
// would push the stack outside the game's buy-in bounds are rejected
// before any write, regardless of approval mode. Approved requests
// apply immediately when the table is between hands and defer to the
// next boundary otherwise; requests over the member's available credit
// wait for an explicit host decision.
func (e *Engine) RequestBuyIn(gameCode string, playerID uint64, amount int64) (*BuyinResult, error) {
	return e.requestChips(gameCode, playerID, amount,
		store.KindBuyinApproved, store.KindWaitBuyinApproval)
}

// RequestReload tops up a live stack. Same bounds and approval
// machinery as a buy-in; the stack never changes while a hand is in
// flight.
func (e *Engine) RequestReload(gameCode string, playerID uint64, amount int64) (*BuyinResult, error) {
	return e.requestChips(gameCode, playerID, amount,
		store.KindReloadApproved, store.KindWaitReloadApproval)
}

func (e *Engine) requestChips(gameCode string, playerID uint64, amount int64, approvedKind, waitKind store.PendingKind) (*BuyinResult, error) {
	var (
		result BuyinResult
		game   *store.Game
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if game.Status == store.GameEnded {
			return ErrGameEnded
		}
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return fmt.Errorf("player %d not in game %s: %w", playerID, gameCode, err)
		}
		settings, err := store.SettingsForGame(tx, game.ID)
		if err != nil {
			return err
		}

		if amount <= 0 ||
			seat.Stack+amount < game.BuyinMin ||
			seat.Stack+amount > game.BuyinMax {
			return fmt.Errorf("%w: stack %d + amount %d must land in [%d, %d]",
				ErrAmountOutOfBounds, seat.Stack, amount, game.BuyinMin, game.BuyinMax)
		}

		midHand := game.Status == store.GameActive &&
			game.TableStatus == store.TableGameRunning

		autoApproved := playerID == game.HostPlayerID || settings.AutoApproval
		if !autoApproved && game.ClubCode != "" {
			member, err := e.clubs.Member(game.ClubCode, playerID)
			if err != nil {
				return fmt.Errorf("club membership for player %d: %w", playerID, err)
			}
			switch {
			case member.AutoApproval || member.IsOwner:
				autoApproved = true
			case member.CreditLimit == nil:
				// No limit set means the member buys in freely.
				autoApproved = true
			default:
				outstanding, err := e.clubs.OutstandingBuyins(game.ClubCode, playerID)
				if err != nil {
					return err
				}
				credit := *member.CreditLimit - outstanding
				result.AvailableCredit = &credit
				if amount <= credit {
					autoApproved = true
				}
			}
		}

		switch {
		case autoApproved && !midHand:
			if err := applyBuyin(tx, seat, amount); err != nil {
				return err
			}
			result.Approved = true
			result.Status = seat.Status
		case autoApproved && midHand:
			err := store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     approvedKind,
				Amount:   amount,
			})
			if err != nil {
				return err
			}
			seat.Status = store.SeatPendingUpdates
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
			result.Approved = true
			result.Deferred = true
			result.Status = store.SeatPendingUpdates
		default:
			err := store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     waitKind,
				Amount:   amount,
			})
			if err != nil {
				return err
			}
			seat.Status = store.SeatPendingUpdates
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
			result.Status = store.SeatWaitForBuyinApproval
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case result.Approved && !result.Deferred:
		e.timers.Cancel(game.ID, playerID, store.PurposeBuyin)
		e.publish(EventBuyinApproved, gameCode, map[string]any{
			"playerId": playerID, "amount": amount,
		})
	case result.Approved && result.Deferred:
		e.publish(EventBuyinPending, gameCode, map[string]any{
			"playerId": playerID, "amount": amount, "deferred": true,
		})
	default:
		// Waiting on a host decision.
		e.timers.Schedule(game.ID, playerID, store.PurposeBuyinApproval,
			e.clock.Now().Add(e.settings.BuyinApprovalTimeout()))
		e.publish(EventBuyinPending, gameCode, map[string]any{
			"playerId": playerID, "amount": amount, "approvalNeeded": true,
		})
	}
	return &result, nil
}

// approvedKindFor maps an approval-wait row to the kind drained at the
// next boundary once the host says yes.
func approvedKindFor(kind store.PendingKind) store.PendingKind {
	if kind == store.KindWaitReloadApproval {
		return store.KindReloadApproved
	}
	return store.KindBuyinApproved
}

// pendingApprovalRow finds the player's outstanding approval-wait row,
// buy-in or reload.
func pendingApprovalRow(tx *gorm.DB, gameID, playerID uint64) (*store.PendingUpdate, error) {
	update, err := store.PendingByPlayerKind(tx, gameID, playerID, store.KindWaitBuyinApproval)
	if errors.Is(err, store.ErrNotFound) {
		return store.PendingByPlayerKind(tx, gameID, playerID, store.KindWaitReloadApproval)
	}
	return update, err
}

// ApproveBuyIn resolves a pending over-credit buy-in or reload. Host or
// club manager authority is required; bounds are re-validated before
// the amount commits.
func (e *Engine) ApproveBuyIn(gameCode string, approverID, playerID uint64, approve bool) error {
	var (
		game     *store.Game
		applied  bool
		deferred bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, approverID); err != nil {
			return err
		}
		update, err := pendingApprovalRow(tx, game.ID, playerID)
		if err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return err
		}

		if !approve {
			if err := store.DeletePending(tx, update.ID); err != nil {
				return err
			}
			seat.Status = deniedStatus(seat)
			return store.UpdateSeat(tx, seat)
		}

		if seat.Stack+update.Amount < game.BuyinMin ||
			seat.Stack+update.Amount > game.BuyinMax {
			return fmt.Errorf("%w: stack %d + amount %d must land in [%d, %d]",
				ErrAmountOutOfBounds, seat.Stack, update.Amount, game.BuyinMin, game.BuyinMax)
		}

		midHand := game.Status == store.GameActive &&
			game.TableStatus == store.TableGameRunning
		if midHand {
			// Leave the amount queued; the drain applies it at the
			// next boundary.
			update.Kind = approvedKindFor(update.Kind)
			if err := tx.Save(update).Error; err != nil {
				return err
			}
			deferred = true
			return nil
		}

		if err := store.DeletePending(tx, update.ID); err != nil {
			return err
		}
		if err := applyBuyin(tx, seat, update.Amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	e.timers.Cancel(game.ID, playerID, store.PurposeBuyinApproval)
	switch {
	case applied:
		e.timers.Cancel(game.ID, playerID, store.PurposeBuyin)
		e.publish(EventBuyinApproved, gameCode, map[string]any{"playerId": playerID})
	case deferred:
		e.publish(EventBuyinPending, gameCode, map[string]any{
			"playerId": playerID, "deferred": true,
		})
	default:
		e.publish(EventBuyinDenied, gameCode, map[string]any{"playerId": playerID})
	}
	return nil
}

// applyBuyin commits an approved amount to the seat in one atomic
// update. A player waiting on chips goes back to playing.
func applyBuyin(tx *gorm.DB, seat *store.SeatAssignment, amount int64) error {
	seat.BuyinCount++
	seat.Stack += amount
	seat.BuyIn += amount
	if seat.SeatNo != 0 &&
		(seat.Status == store.SeatWaitForBuyin ||
			seat.Status == store.SeatWaitForBuyinApproval ||
			seat.Status == store.SeatPendingUpdates) {
		seat.Status = store.SeatPlaying
	}
	seat.BuyinExpiresAt = nil
	return store.UpdateSeat(tx, seat)
}

// deniedStatus restores a seat's status after a denied buy-in.
func deniedStatus(seat *store.SeatAssignment) store.SeatStatus {
	if seat.Stack == 0 {
		return store.SeatWaitForBuyin
	}
	return store.SeatPlaying
}

// startBuyinClocks puts every seated player with an empty stack on the
// buy-in clock. Called while draining pending updates at a hand
// boundary.
func (e *Engine) startBuyinClocks(tx *gorm.DB, game *store.Game, settings *store.GameSettings) error {
	seats, err := store.SeatsForGame(tx, game.ID)
	if err != nil {
		return err
	}
	timeout := settings.BuyinTimeout
	if timeout == 0 {
		timeout = e.settings.BuyinTimeout()
	}
	for i := range seats {
		seat := &seats[i]
		if seat.Stack != 0 || seat.Status != store.SeatPlaying {
			continue
		}
		expiresAt := e.clock.Now().Add(timeout)
		seat.Status = store.SeatWaitForBuyin
		seat.BuyinExpiresAt = &expiresAt
		if err := store.UpdateSeat(tx, seat); err != nil {
			return err
		}
		e.timers.Schedule(game.ID, seat.PlayerID, store.PurposeBuyin, expiresAt)
	}
	return nil
}

// buyinTimerExpired seats out a player who never bought back in.
func (e *Engine) buyinTimerExpired(gameID, playerID uint64) error {
	var (
		game     *store.Game
		openSeat int
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, gameID, playerID)
		if err != nil {
			return err
		}
		if seat.Status != store.SeatWaitForBuyin {
			// The player bought in before the clock fired.
			return nil
		}
		openSeat = seat.SeatNo
		now := e.clock.Now()
		seat.SeatNo = 0
		seat.Status = store.SeatLeft
		seat.BuyinExpiresAt = nil
		if seat.SatAt != nil {
			seat.SessionSecs += int64(now.Sub(*seat.SatAt).Seconds())
			seat.SatAt = nil
		}
		if err := store.UpdateSeat(tx, seat); err != nil {
			return err
		}
		return e.refreshSeatedCount(tx, game.ID)
	})
	if err != nil || openSeat == 0 {
		return err
	}

	e.publish(EventPlayerLeft, game.Code, map[string]any{
		"playerId": playerID, "seatNo": openSeat, "buyinTimeout": true,
	})
	return e.serveSeatChangeQueue(game.ID, openSeat)
}

// buyinApprovalExpired denies a pending buy-in the host never acted on.
func (e *Engine) buyinApprovalExpired(gameID, playerID uint64) error {
	var (
		game   *store.Game
		denied bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		update, err := pendingApprovalRow(tx, gameID, playerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// The host decided before the clock fired.
				return nil
			}
			return err
		}
		if err := store.DeletePending(tx, update.ID); err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, gameID, playerID)
		if err != nil {
			return err
		}
		seat.Status = deniedStatus(seat)
		denied = true
		return store.UpdateSeat(tx, seat)
	})
	if err != nil || !denied {
		return err
	}
	e.publish(EventBuyinDenied, game.Code, map[string]any{
		"playerId": playerID, "timeout": true,
	})
	return nil
}
