package engine

import (
	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// BeginHostReseat freezes the table and takes a scratch snapshot of
// every seat. All swaps run against the scratch copy; live seats stay
// untouched until commit.
func (e *Engine) BeginHostReseat(gameCode string, hostID uint64) error {
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
		if game.TableStatus == store.TableHostReseatInProgress {
			return ErrReseatInProgress
		}

		// Stale scratch rows from an interrupted run are discarded.
		if err := store.DeleteReseatForGame(tx, game.ID); err != nil {
			return err
		}

		seats, err := store.SeatsForGame(tx, game.ID)
		if err != nil {
			return err
		}
		bySeat := make(map[int]*store.SeatAssignment, len(seats))
		for i := range seats {
			bySeat[seats[i].SeatNo] = &seats[i]
		}
		for seatNo := 1; seatNo <= game.MaxSeats; seatNo++ {
			scratch := &store.HostReseatSeat{
				GameID:   game.ID,
				SeatNo:   seatNo,
				OpenSeat: true,
			}
			if seat, ok := bySeat[seatNo]; ok {
				scratch.OpenSeat = false
				scratch.PlayerID = seat.PlayerID
				scratch.PlayerName = seat.PlayerName
				scratch.Stack = seat.Stack
			}
			if err := store.SaveReseatSeat(tx, scratch); err != nil {
				return err
			}
		}

		game.PrevTableStatus = game.TableStatus
		game.TableStatus = store.TableHostReseatInProgress
		return store.SaveGame(tx, game)
	})
	if err != nil {
		return err
	}

	e.publish(EventHostReseatStarted, gameCode, map[string]any{"hostId": hostID})
	return nil
}

// SwapSeats exchanges two seats of the scratch layout. Two open seats
// cannot be swapped with each other.
func (e *Engine) SwapSeats(gameCode string, hostID uint64, seatNo1, seatNo2 int) error {
	var moves []map[string]any
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.TableStatus != store.TableHostReseatInProgress {
			return ErrNoReseatInProgress
		}
		if seatNo1 < 1 || seatNo1 > game.MaxSeats ||
			seatNo2 < 1 || seatNo2 > game.MaxSeats {
			return ErrSeatOutOfRange
		}

		seat1, err := store.ReseatSeat(tx, game.ID, seatNo1)
		if err != nil {
			return err
		}
		seat2, err := store.ReseatSeat(tx, game.ID, seatNo2)
		if err != nil {
			return err
		}
		if seat1.OpenSeat && seat2.OpenSeat {
			// Nothing to move.
			return nil
		}

		seat1.OpenSeat, seat2.OpenSeat = seat2.OpenSeat, seat1.OpenSeat
		seat1.PlayerID, seat2.PlayerID = seat2.PlayerID, seat1.PlayerID
		seat1.PlayerName, seat2.PlayerName = seat2.PlayerName, seat1.PlayerName
		seat1.Stack, seat2.Stack = seat2.Stack, seat1.Stack
		if err := store.SaveReseatSeat(tx, seat1); err != nil {
			return err
		}
		if err := store.SaveReseatSeat(tx, seat2); err != nil {
			return err
		}

		moves = []map[string]any{
			{"seatNo": seat1.SeatNo, "playerId": seat1.PlayerID, "openSeat": seat1.OpenSeat},
			{"seatNo": seat2.SeatNo, "playerId": seat2.PlayerID, "openSeat": seat2.OpenSeat},
		}
		return nil
	})
	if err != nil {
		return err
	}

	if moves != nil {
		e.publish(EventHostReseatMove, gameCode, map[string]any{"moves": moves})
	}
	return nil
}

// CommitHostReseat applies the scratch layout to the live seats in one
// transaction and resumes the table.
func (e *Engine) CommitHostReseat(gameCode string, hostID uint64) error {
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.TableStatus != store.TableHostReseatInProgress {
			return ErrNoReseatInProgress
		}

		scratch, err := store.ReseatSeats(tx, game.ID)
		if err != nil {
			return err
		}
		for _, row := range scratch {
			if row.OpenSeat || row.PlayerID == 0 {
				continue
			}
			seat, err := store.SeatByPlayer(tx, game.ID, row.PlayerID)
			if err != nil {
				return err
			}
			if seat.SeatNo == row.SeatNo {
				continue
			}
			seat.SeatNo = row.SeatNo
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
		}

		if err := store.DeleteReseatForGame(tx, game.ID); err != nil {
			return err
		}
		game.TableStatus = game.PrevTableStatus
		return store.SaveGame(tx, game)
	})
	if err != nil {
		return err
	}

	e.publish(EventHostReseatEnded, gameCode, map[string]any{
		"hostId": hostID, "committed": true,
	})
	return nil
}

// CancelHostReseat discards the scratch layout; live seats never
// changed.
func (e *Engine) CancelHostReseat(gameCode string, hostID uint64) error {
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if game.TableStatus != store.TableHostReseatInProgress {
			return ErrNoReseatInProgress
		}
		if err := store.DeleteReseatForGame(tx, game.ID); err != nil {
			return err
		}
		game.TableStatus = game.PrevTableStatus
		return store.SaveGame(tx, game)
	})
	if err != nil {
		return err
	}

	e.publish(EventHostReseatEnded, gameCode, map[string]any{
		"hostId": hostID, "committed": false,
	})
	return nil
}
