package engine

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// RequestSeatChange enqueues a timestamped seat-change request. The
// queue is FIFO by request time; the player must be in the hand.
func (e *Engine) RequestSeatChange(gameCode string, playerID uint64) (time.Time, error) {
	var requestedAt time.Time
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return err
		}
		if seat.SeatNo == 0 {
			return ErrNotSeated
		}
		if seat.Status != store.SeatPlaying {
			return ErrNotPlaying
		}
		requestedAt = e.clock.Now()
		seat.SeatChangeRequestedAt = &requestedAt
		return store.UpdateSeat(tx, seat)
	})
	return requestedAt, err
}

// CancelSeatChangeRequest removes the player from the queue.
func (e *Engine) CancelSeatChangeRequest(gameCode string, playerID uint64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return err
		}
		seat.SeatChangeRequestedAt = nil
		return store.UpdateSeat(tx, seat)
	})
}

// serveSeatChangeQueue offers an open seat to the oldest requester.
// Exactly one offer is outstanding per game; the process ends when the
// queue empties or the table fills up.
func (e *Engine) serveSeatChangeQueue(gameID uint64, openSeat int) error {
	var (
		game      *store.Game
		offered   *store.SeatChangeOffer
		expiresAt time.Time
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		if !game.SeatChangeAllowed || openSeat == 0 {
			return nil
		}
		if _, err := store.OfferForGame(tx, gameID); err == nil {
			// A prompt is already outstanding.
			return nil
		}
		count, err := store.OccupiedSeatCount(tx, gameID)
		if err != nil {
			return err
		}
		if count >= game.MaxSeats {
			return nil
		}

		candidate, err := oldestSeatChangeRequester(tx, gameID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		expiresAt = e.clock.Now().Add(e.settings.SeatChangeTimeout())
		offered = &store.SeatChangeOffer{
			GameID:    gameID,
			PlayerID:  candidate.PlayerID,
			OpenSeat:  openSeat,
			ExpiresAt: expiresAt,
		}
		return store.SaveOffer(tx, offered)
	})
	if err != nil || offered == nil {
		return err
	}

	e.timers.Schedule(gameID, offered.PlayerID, store.PurposeSeatChange, expiresAt)
	e.publish(EventSeatChangePrompt, game.Code, map[string]any{
		"playerId":  offered.PlayerID,
		"openSeat":  offered.OpenSeat,
		"expiresAt": expiresAt,
	})
	return nil
}

// oldestSeatChangeRequester returns the playing player with the oldest
// pending seat-change request.
func oldestSeatChangeRequester(tx *gorm.DB, gameID uint64) (*store.SeatAssignment, error) {
	var seat store.SeatAssignment
	err := tx.Where("game_id = ? AND seat_no > 0 AND status = ? AND seat_change_requested_at IS NOT NULL",
		gameID, store.SeatPlaying).
		Order("seat_change_requested_at asc").
		First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// ConfirmSeatChange accepts the outstanding offer. seatNo 0 takes the
// offered seat. The move is atomic; the freed seat becomes the next
// offer target.
func (e *Engine) ConfirmSeatChange(gameCode string, playerID uint64, seatNo int) error {
	var (
		game    *store.Game
		oldSeat int
		newSeat int
		queued  bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		offer, err := store.OfferForGame(tx, game.ID)
		if err != nil || offer.PlayerID != playerID {
			return ErrNoOffer
		}
		if seatNo == 0 {
			seatNo = offer.OpenSeat
		}
		if seatNo < 1 || seatNo > game.MaxSeats {
			return ErrSeatOutOfRange
		}

		// Uniqueness check inside the transaction: the losing caller of
		// a race for this seat gets an explicit error.
		if _, err := store.SeatBySeatNo(tx, game.ID, seatNo); err == nil {
			return ErrSeatOccupied
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return err
		}
		oldSeat = seat.SeatNo
		newSeat = seatNo

		if midHand(game) {
			// The move waits for the boundary so the hand in flight
			// keeps its seating.
			queued = true
			err := store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     store.KindSwitchSeat,
				NewSeat:  seatNo,
			})
			if err != nil {
				return err
			}
			seat.SeatChangeRequestedAt = nil
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
			return store.DeleteOfferForGame(tx, game.ID)
		}

		seat.SeatNo = seatNo
		seat.SeatChangeRequestedAt = nil
		if err := store.UpdateSeat(tx, seat); err != nil {
			return err
		}
		return store.DeleteOfferForGame(tx, game.ID)
	})
	if err != nil {
		return err
	}

	e.timers.Cancel(game.ID, playerID, store.PurposeSeatChange)
	if queued {
		e.publish(EventPlayerSeatMove, gameCode, map[string]any{
			"playerId": playerID, "oldSeat": oldSeat, "newSeat": newSeat, "deferred": true,
		})
		return nil
	}
	e.publish(EventPlayerSeatMove, gameCode, map[string]any{
		"playerId": playerID, "oldSeat": oldSeat, "newSeat": newSeat,
	})
	// The vacated seat is the next offer target.
	return e.serveSeatChangeQueue(game.ID, oldSeat)
}

// DeclineSeatChange turns down the outstanding offer and drops the
// player from the queue; the same open seat goes to the next candidate.
func (e *Engine) DeclineSeatChange(gameCode string, playerID uint64) error {
	game, err := store.GameByCode(e.store.DB(), gameCode)
	if err != nil {
		return err
	}
	return e.retireOffer(game, playerID, false)
}

// seatChangePromptExpired handles the offer timer firing.
func (e *Engine) seatChangePromptExpired(gameID uint64) error {
	game, err := store.GameByID(e.store.DB(), gameID)
	if err != nil {
		return err
	}
	offer, err := store.OfferForGame(e.store.DB(), gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return e.retireOffer(game, offer.PlayerID, true)
}

// retireOffer removes the current offer and its holder from the queue,
// then advances to the next candidate for the same seat.
func (e *Engine) retireOffer(game *store.Game, playerID uint64, timedOut bool) error {
	var openSeat int
	err := e.store.Transaction(func(tx *gorm.DB) error {
		offer, err := store.OfferForGame(tx, game.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoOffer
			}
			return err
		}
		if offer.PlayerID != playerID {
			return ErrNoOffer
		}
		openSeat = offer.OpenSeat
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err == nil {
			seat.SeatChangeRequestedAt = nil
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return store.DeleteOfferForGame(tx, game.ID)
	})
	if err != nil {
		return err
	}

	e.timers.Cancel(game.ID, playerID, store.PurposeSeatChange)
	e.publish(EventSeatChangeDeclined, game.Code, map[string]any{
		"playerId": playerID, "timedOut": timedOut,
	})
	return e.serveSeatChangeQueue(game.ID, openSeat)
}
