package engine

import (
	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// midHand reports whether a disruptive action must wait for the next
// hand boundary.
func midHand(game *store.Game) bool {
	return game.Status == store.GameActive &&
		game.TableStatus == store.TableGameRunning
}

// refreshSeatedCount recomputes the occupied-seat counter after a seat
// opened or filled.
func (e *Engine) refreshSeatedCount(tx *gorm.DB, gameID uint64) error {
	count, err := store.OccupiedSeatCount(tx, gameID)
	if err != nil {
		return err
	}
	return tx.Model(&store.TableState{}).
		Where("game_id = ?", gameID).
		UpdateColumn("seated_count", count).Error
}

// KickOutPlayer removes a player from the table. Mid-hand the command
// is queued and applied at the next boundary.
func (e *Engine) KickOutPlayer(gameCode string, hostID, playerID uint64) error {
	var (
		game     *store.Game
		openSeat int
		queued   bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if midHand(game) {
			queued = true
			return store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     store.KindKickout,
			})
		}
		openSeat, err = e.applyKickout(tx, game, playerID)
		return err
	})
	if err != nil {
		return err
	}

	if queued {
		return nil
	}
	e.publish(EventPlayerKickedOut, gameCode, map[string]any{
		"playerId": playerID, "seatNo": openSeat,
	})
	return e.serveSeatChangeQueue(game.ID, openSeat)
}

// applyKickout performs the actual removal: the seat opens, the seat
// count updates immediately.
func (e *Engine) applyKickout(tx *gorm.DB, game *store.Game, playerID uint64) (int, error) {
	seat, err := store.SeatByPlayer(tx, game.ID, playerID)
	if err != nil {
		return 0, err
	}
	openSeat := seat.SeatNo
	now := e.clock.Now()
	if seat.SatAt != nil {
		seat.SessionSecs += int64(now.Sub(*seat.SatAt).Seconds())
		seat.SatAt = nil
	}
	seat.SeatNo = 0
	seat.Status = store.SeatKickedOut
	if err := store.UpdateSeat(tx, seat); err != nil {
		return 0, err
	}
	if err := e.refreshSeatedCount(tx, game.ID); err != nil {
		return 0, err
	}
	return openSeat, nil
}

// LeaveGame lets a player leave; mid-hand the departure waits for the
// boundary so the hand in flight is undisturbed.
func (e *Engine) LeaveGame(gameCode string, playerID uint64) error {
	var (
		game     *store.Game
		openSeat int
		queued   bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if midHand(game) {
			queued = true
			return store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     store.KindLeave,
			})
		}
		openSeat, err = e.applyLeave(tx, game, playerID)
		return err
	})
	if err != nil {
		return err
	}

	if queued {
		return nil
	}
	e.publish(EventPlayerLeft, gameCode, map[string]any{
		"playerId": playerID, "seatNo": openSeat,
	})
	return e.serveSeatChangeQueue(game.ID, openSeat)
}

func (e *Engine) applyLeave(tx *gorm.DB, game *store.Game, playerID uint64) (int, error) {
	seat, err := store.SeatByPlayer(tx, game.ID, playerID)
	if err != nil {
		return 0, err
	}
	openSeat := seat.SeatNo
	now := e.clock.Now()
	if seat.SatAt != nil {
		seat.SessionSecs += int64(now.Sub(*seat.SatAt).Seconds())
		seat.SatAt = nil
	}
	seat.SeatNo = 0
	seat.Status = store.SeatLeft
	seat.SeatChangeRequestedAt = nil
	if err := store.UpdateSeat(tx, seat); err != nil {
		return 0, err
	}
	if err := e.refreshSeatedCount(tx, game.ID); err != nil {
		return 0, err
	}
	return openSeat, nil
}

// PostBlind buys a player with missed-blind debt back into the deal:
// the blind posts with the next hand and the seat is dealt in again.
func (e *Engine) PostBlind(gameCode string, playerID uint64) error {
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
		if seat.Status != store.SeatNeedToPostBlind && !seat.MissedBlind {
			return ErrNotPlaying
		}
		seat.PostBlindNextHand = true
		if seat.Status == store.SeatNeedToPostBlind {
			seat.Status = store.SeatPlaying
		}
		return store.UpdateSeat(tx, seat)
	})
	if err != nil {
		return err
	}
	e.publish(EventBlindPosted, gameCode, map[string]any{"playerId": playerID})
	return nil
}

// TakeBreak sits a player out temporarily. Mid-hand it is deferred; the
// break clock starts when the break actually begins.
func (e *Engine) TakeBreak(gameCode string, playerID uint64) error {
	var (
		game   *store.Game
		queued bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
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
		if midHand(game) {
			queued = true
			return store.AppendPending(tx, &store.PendingUpdate{
				GameID:   game.ID,
				PlayerID: playerID,
				Kind:     store.KindTakeBreak,
			})
		}
		return e.applyBreak(tx, game, seat)
	})
	if err != nil || queued {
		return err
	}
	e.publish(EventPlayerBreak, gameCode, map[string]any{"playerId": playerID})
	return nil
}

func (e *Engine) applyBreak(tx *gorm.DB, game *store.Game, seat *store.SeatAssignment) error {
	settings, err := store.SettingsForGame(tx, game.ID)
	if err != nil {
		return err
	}
	length := settings.BreakLength
	if length == 0 {
		length = e.settings.BreakLength()
	}
	expiresAt := e.clock.Now().Add(length)
	seat.Status = store.SeatInBreak
	seat.BreakExpiresAt = &expiresAt
	if err := store.UpdateSeat(tx, seat); err != nil {
		return err
	}
	e.timers.Schedule(game.ID, seat.PlayerID, store.PurposeBreak, expiresAt)
	return nil
}

// breakExpired seats out a player whose break ran out.
func (e *Engine) breakExpired(gameID, playerID uint64) error {
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
		if seat.Status != store.SeatInBreak {
			return nil
		}
		seat.BreakExpiresAt = nil
		openSeat, err = e.applyLeave(tx, game, playerID)
		return err
	})
	if err != nil || openSeat == 0 {
		return err
	}
	e.publish(EventPlayerLeft, game.Code, map[string]any{
		"playerId": playerID, "seatNo": openSeat, "breakExpired": true,
	})
	return e.serveSeatChangeQueue(game.ID, openSeat)
}

// PauseGame pauses the game at the next safe boundary, or immediately
// when no hand is in flight.
func (e *Engine) PauseGame(gameCode string, hostID uint64) error {
	var queued bool
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.Status == store.GameEnded {
			return ErrGameEnded
		}
		if midHand(game) {
			queued = true
			return store.AppendPending(tx, &store.PendingUpdate{
				GameID: game.ID,
				Kind:   store.KindPauseGame,
			})
		}
		game.Status = store.GamePaused
		return store.SaveGame(tx, game)
	})
	if err != nil || queued {
		return err
	}
	e.publish(EventGamePaused, gameCode, nil)
	return nil
}

// ResumeGame reactivates a paused game and drains whatever piled up
// while it was stopped.
func (e *Engine) ResumeGame(gameCode string, hostID uint64) error {
	var game *store.Game
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.Status != store.GamePaused {
			return ErrGameNotPaused
		}
		game.Status = store.GameActive
		game.TableStatus = store.TableWaiting
		return store.SaveGame(tx, game)
	})
	if err != nil {
		return err
	}
	e.publish(EventGameResumed, gameCode, nil)
	return e.DrainPendingUpdates(game.ID)
}

// EndGame ends the game cooperatively: mid-hand it queues an END_GAME
// update that pre-empts everything else at the next boundary.
func (e *Engine) EndGame(gameCode string, hostID uint64) error {
	var queued bool
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.Status == store.GameEnded {
			return nil
		}
		if midHand(game) {
			queued = true
			return store.AppendPending(tx, &store.PendingUpdate{
				GameID: game.ID,
				Kind:   store.KindEndGame,
			})
		}
		game.Status = store.GameEnded
		if err := store.SaveGame(tx, game); err != nil {
			return err
		}
		return store.DeletePendingForGame(tx, game.ID)
	})
	if err != nil || queued {
		return err
	}
	// Status change is persisted inside the transaction above.
	e.publish(EventGameEnded, gameCode, nil)
	return nil
}
