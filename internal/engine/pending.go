package engine

import (
	"errors"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// DrainPendingUpdates applies every deferred command for a game at a
// safe boundary. An END_GAME row pre-empts everything else; a PAUSE row
// stops the drain after pausing. Approval-wait rows stay queued until
// the host decides.
func (e *Engine) DrainPendingUpdates(gameID uint64) error {
	var (
		game         *store.Game
		events       []Event
		openSeats    []int
		promptChoice bool
		ended        bool
		paused       bool
		skipped      bool
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		if game.TableStatus == store.TableHostReseatInProgress {
			// The host owns the table right now; try again later.
			skipped = true
			return nil
		}

		endCount, err := store.PendingCount(tx, gameID, store.KindEndGame)
		if err != nil {
			return err
		}
		if endCount > 0 {
			game.Status = store.GameEnded
			if err := store.SaveGame(tx, game); err != nil {
				return err
			}
			ended = true
			return store.DeletePendingForGame(tx, gameID)
		}

		pauseCount, err := store.PendingCount(tx, gameID, store.KindPauseGame)
		if err != nil {
			return err
		}
		if pauseCount > 0 {
			game.Status = store.GamePaused
			if err := store.SaveGame(tx, game); err != nil {
				return err
			}
			paused = true
			return store.DeletePendingKind(tx, gameID, store.KindPauseGame)
		}

		updates, err := store.PendingForGame(tx, gameID)
		if err != nil {
			return err
		}
		for i := range updates {
			update := &updates[i]
			switch update.Kind {
			case store.KindKickout:
				openSeat, err := e.applyKickout(tx, game, update.PlayerID)
				if err != nil {
					return err
				}
				openSeats = append(openSeats, openSeat)
				events = append(events, Event{
					Type:     EventPlayerKickedOut,
					GameCode: game.Code,
					Data:     map[string]any{"playerId": update.PlayerID, "seatNo": openSeat},
				})
			case store.KindLeave:
				openSeat, err := e.applyLeave(tx, game, update.PlayerID)
				if err != nil {
					return err
				}
				openSeats = append(openSeats, openSeat)
				events = append(events, Event{
					Type:     EventPlayerLeft,
					GameCode: game.Code,
					Data:     map[string]any{"playerId": update.PlayerID, "seatNo": openSeat},
				})
			case store.KindBuyinApproved, store.KindReloadApproved:
				seat, err := store.SeatByPlayer(tx, gameID, update.PlayerID)
				if err != nil {
					return err
				}
				if err := applyBuyin(tx, seat, update.Amount); err != nil {
					return err
				}
				events = append(events, Event{
					Type:     EventBuyinApproved,
					GameCode: game.Code,
					Data: map[string]any{
						"playerId": update.PlayerID,
						"amount":   update.Amount,
						"stack":    seat.Stack,
					},
				})
			case store.KindSwitchSeat:
				seat, err := store.SeatByPlayer(tx, gameID, update.PlayerID)
				if err != nil {
					return err
				}
				if _, err := store.SeatBySeatNo(tx, gameID, update.NewSeat); err == nil {
					// Someone claimed the seat first; the move is dropped.
					break
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
				oldSeat := seat.SeatNo
				seat.SeatNo = update.NewSeat
				if err := store.UpdateSeat(tx, seat); err != nil {
					return err
				}
				openSeats = append(openSeats, oldSeat)
				events = append(events, Event{
					Type:     EventPlayerSeatMove,
					GameCode: game.Code,
					Data: map[string]any{
						"playerId": update.PlayerID,
						"oldSeat":  oldSeat,
						"newSeat":  update.NewSeat,
					},
				})
			case store.KindTakeBreak:
				seat, err := store.SeatByPlayer(tx, gameID, update.PlayerID)
				if err != nil {
					return err
				}
				if err := e.applyBreak(tx, game, seat); err != nil {
					return err
				}
				events = append(events, Event{
					Type:     EventPlayerBreak,
					GameCode: game.Code,
					Data:     map[string]any{"playerId": update.PlayerID},
				})
			case store.KindDealerChoicePrompt:
				promptChoice = true
			default:
				// Approval-wait rows stay queued for the host.
				continue
			}
			if err := store.DeletePending(tx, update.ID); err != nil {
				return err
			}
		}

		settings, err := store.SettingsForGame(tx, gameID)
		if err != nil {
			return err
		}
		if err := e.startBuyinClocks(tx, game, settings); err != nil {
			return err
		}
		return e.checkEnoughPlayers(tx, game)
	})
	if err != nil || skipped {
		return err
	}

	for _, event := range events {
		e.notifier.Publish(event)
	}
	if ended {
		e.publish(EventGameEnded, game.Code, nil)
		return nil
	}
	if paused {
		e.publish(EventGamePaused, game.Code, nil)
		return nil
	}

	for _, seat := range openSeats {
		if err := e.serveSeatChangeQueue(gameID, seat); err != nil {
			return err
		}
	}
	if promptChoice {
		if err := e.promptDealerChoice(gameID); err != nil {
			return err
		}
	}
	e.publish(EventPendingDone, game.Code, nil)
	return nil
}

// checkEnoughPlayers downgrades the table when fewer than two players
// can be dealt in.
func (e *Engine) checkEnoughPlayers(tx *gorm.DB, game *store.Game) error {
	seats, err := store.SeatsForGame(tx, game.ID)
	if err != nil {
		return err
	}
	active := 0
	for i := range seats {
		if seats[i].Status == store.SeatPlaying {
			active++
		}
	}
	if active >= 2 || game.TableStatus != store.TableGameRunning {
		return nil
	}
	game.TableStatus = store.TableNotEnoughPlayers
	return store.SaveGame(tx, game)
}

// promptDealerChoice asks the next button seat's occupant to pick the
// variant for the coming hand.
func (e *Engine) promptDealerChoice(gameID uint64) error {
	var (
		game     *store.Game
		seatNo   int
		playerID uint64
	)
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		state, err := store.TableStateForGame(tx, gameID)
		if err != nil {
			return err
		}
		seats, err := store.SeatsForGame(tx, gameID)
		if err != nil {
			return err
		}
		active := make(map[int]*store.SeatAssignment, len(seats))
		for i := range seats {
			if seats[i].Status == store.SeatPlaying {
				active[seats[i].SeatNo] = &seats[i]
			}
		}

		// The next occupied seat after the button gets the choice.
		seat := state.ButtonSeat
		for i := 0; i < game.MaxSeats; i++ {
			seat++
			if seat > game.MaxSeats {
				seat = 1
			}
			if s, ok := active[seat]; ok {
				seatNo = seat
				playerID = s.PlayerID
				break
			}
		}
		if seatNo == 0 {
			return nil
		}
		state.DealerChoiceSeat = seatNo
		return store.UpdateTableState(tx, state)
	})
	if err != nil || seatNo == 0 {
		return err
	}

	timeout := e.settings.DealerChoiceTimeout()
	e.timers.Schedule(gameID, 0, store.PurposeDealerChoice, e.clock.Now().Add(timeout))
	e.publish(EventDealerChoicePrompt, game.Code, map[string]any{
		"seatNo":     seatNo,
		"playerId":   playerID,
		"timeoutSec": int(timeout.Seconds()),
	})
	return nil
}
