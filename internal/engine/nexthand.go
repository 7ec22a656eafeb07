package engine

import (
	"encoding/json"
	"sort"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// SeatInfo is one seat of a hand setup as reported to the game engine.
type SeatInfo struct {
	SeatNo      int              `json:"seatNo"`
	PlayerID    uint64           `json:"playerId"`
	PlayerName  string           `json:"playerName"`
	Stack       int64            `json:"stack"`
	Status      store.SeatStatus `json:"status"`
	InHand      bool             `json:"inHand"`
	MissedBlind bool             `json:"missedBlind"`
	PostedBlind bool             `json:"postedBlind"`
}

// HandSetup describes the hand about to be dealt. AdvanceToHand returns
// it after mutating table state; DescribeHand rebuilds the same view
// without side effects so a crashed game server can ask again.
type HandSetup struct {
	HandNum    int               `json:"handNum"`
	ButtonSeat int               `json:"buttonSeat"`
	SBSeat     int               `json:"sbSeat"`
	BBSeat     int               `json:"bbSeat"`
	SmallBlind int64             `json:"smallBlind"`
	BigBlind   int64             `json:"bigBlind"`
	Variant    store.GameVariant `json:"variant"`

	BombPot     bool  `json:"bombPot"`
	DoubleBoard bool  `json:"doubleBoard"`
	BombPotBet  int64 `json:"bombPotBet"`

	Seats    []SeatInfo `json:"seats"`
	Excluded []int      `json:"excluded,omitempty"`

	NotEnoughPlayers bool `json:"notEnoughPlayers"`
}

// AdvanceToHand moves the table to the next hand. engineHandNum is the
// hand the caller believes just finished; a stored hand number already
// past it means a duplicate request, which returns the current setup
// without moving anything. The whole transition runs in one
// transaction.
func (e *Engine) AdvanceToHand(gameCode string, engineHandNum int) (*HandSetup, error) {
	var setup *HandSetup
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if game.Status == store.GameEnded {
			return ErrGameEnded
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		if state.HandNum > engineHandNum {
			// Duplicate advance. The previous request already moved the
			// table; hand the same setup back.
			setup, err = e.buildSetup(tx, game, state)
			return err
		}
		settings, err := store.SettingsForGame(tx, game.ID)
		if err != nil {
			return err
		}
		newHandNum := state.HandNum + 1

		seats, err := store.SeatsForGame(tx, game.ID)
		if err != nil {
			return err
		}
		bySeat := make(map[int]*store.SeatAssignment, len(seats))
		for i := range seats {
			seat := &seats[i]
			// Players flagged to enter at the boundary come in now.
			if seat.InHandNextHand && seat.Status == store.SeatNotPlaying {
				seat.Status = store.SeatPlaying
				seat.InHandNextHand = false
				if err := store.UpdateSeat(tx, seat); err != nil {
					return err
				}
			}
			// A busted stack cannot be dealt in; the buy-in clock starts.
			if seat.Status == store.SeatPlaying && seat.Stack == 0 {
				timeout := settings.BuyinTimeout
				if timeout == 0 {
					timeout = e.settings.BuyinTimeout()
				}
				expiresAt := e.clock.Now().Add(timeout)
				seat.Status = store.SeatWaitForBuyin
				seat.BuyinExpiresAt = &expiresAt
				if err := store.UpdateSeat(tx, seat); err != nil {
					return err
				}
				e.timers.Schedule(game.ID, seat.PlayerID, store.PurposeBuyin, expiresAt)
			}
			bySeat[seat.SeatNo] = seat
		}

		input := BlindInput{
			MaxSeats:     game.MaxSeats,
			HandNum:      newHandNum,
			PrevButton:   state.ButtonSeat,
			PrevSB:       state.SBSeat,
			PrevBB:       state.BBSeat,
			Recompute:    state.RecomputeButton,
			OrbitRefSeat: state.OrbitRefSeat,
			Seats:        make(map[int]SeatState, len(bySeat)),
		}
		for seatNo, seat := range bySeat {
			input.Seats[seatNo] = SeatState{
				Occupied:    true,
				Status:      seat.Status,
				MissedBlind: seat.MissedBlind,
				PostedBlind: seat.PostedBlind || seat.PostBlindNextHand,
			}
		}
		if input.activeCount() < 2 {
			setup = &HandSetup{
				HandNum:          state.HandNum,
				Variant:          state.Variant,
				NotEnoughPlayers: true,
			}
			game.TableStatus = store.TableNotEnoughPlayers
			return store.SaveGame(tx, game)
		}

		res := ComputeBlinds(input)

		for _, seatNo := range res.MissedBlindSeats {
			seat := bySeat[seatNo]
			if seat.MissedBlind {
				continue
			}
			seat.MissedBlind = true
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
		}
		for _, seatNo := range res.ClearMissedBlind {
			seat := bySeat[seatNo]
			seat.MissedBlind = false
			seat.PostedBlind = false
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
		}
		// A posted blind buys the player in for exactly one boundary.
		for _, seat := range bySeat {
			if seat.PostBlindNextHand {
				seat.PostBlindNextHand = false
				seat.MissedBlind = false
				seat.PostedBlind = false
				if err := store.UpdateSeat(tx, seat); err != nil {
					return err
				}
			}
		}

		if newHandNum == 1 {
			state.OrbitRefSeat = res.Button
			state.OrbitHandNum = 1
			// The wall-clock bomb pot interval starts when play starts.
			state.LastBombPotAt = e.clock.Now()
		} else if res.OrbitPassed {
			state.OrbitRefSeat = res.Button
			state.OrbitHandNum = newHandNum
		}

		state.PrevVariant = state.Variant
		state.Variant = rotateVariant(game, state, newHandNum, res.OrbitPassed)

		now := e.clock.Now()
		decision := decideBombPot(state, settings, game, bySeat, now, newHandNum)
		state.BombPotThisHand = decision.Fire
		eligible := make(map[int]bool, len(decision.Eligible))
		if decision.Fire {
			state.LastBombPotAt = now
			state.LastBombPotHandNum = newHandNum
			if state.NextBombPotHandNum == newHandNum {
				state.NextBombPotHandNum = 0
			}
			// The forced bet replaces the blinds, which also squares any
			// blind debt the participants carry.
			for _, seatNo := range decision.Eligible {
				eligible[seatNo] = true
				seat := bySeat[seatNo]
				if seat.MissedBlind || seat.PostedBlind {
					seat.MissedBlind = false
					seat.PostedBlind = false
					if err := store.UpdateSeat(tx, seat); err != nil {
						return err
					}
				}
			}
		}

		if dealerChoicePromptNeeded(game, state, res.OrbitPassed) {
			err := store.AppendPending(tx, &store.PendingUpdate{
				GameID: game.ID,
				Kind:   store.KindDealerChoicePrompt,
			})
			if err != nil {
				return err
			}
		}

		excluded := make(map[int]bool, len(res.Excluded))
		for _, seatNo := range res.Excluded {
			excluded[seatNo] = true
		}
		// A player who still owes a blind sits out until it is posted.
		for seatNo, seat := range bySeat {
			if seat.Status != store.SeatPlaying || !seat.MissedBlind || seat.PostedBlind {
				continue
			}
			excluded[seatNo] = true
			seat.Status = store.SeatNeedToPostBlind
			if err := store.UpdateSeat(tx, seat); err != nil {
				return err
			}
		}
		snapshot := make([]uint64, game.MaxSeats+1)
		for seatNo, seat := range bySeat {
			if seat.Status != store.SeatPlaying || excluded[seatNo] {
				continue
			}
			if decision.Fire && !eligible[seatNo] {
				// Only opted-in seats covering the forced bet play a
				// bomb pot hand.
				excluded[seatNo] = true
				continue
			}
			snapshot[seatNo] = seat.PlayerID
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		state.PrevHandSeats = raw

		excludedSeats := make([]int, 0, len(excluded))
		for seatNo := range excluded {
			excludedSeats = append(excludedSeats, seatNo)
		}
		sort.Ints(excludedSeats)
		rawExcluded, err := json.Marshal(excludedSeats)
		if err != nil {
			return err
		}
		state.ExcludedSeats = rawExcluded

		state.HandNum = newHandNum
		state.ButtonSeat = res.Button
		state.SBSeat = res.SmallBlind
		state.BBSeat = res.BigBlind
		state.RecomputeButton = true
		if err := store.UpdateTableState(tx, state); err != nil {
			return err
		}

		game.TableStatus = store.TableGameRunning
		if err := store.SaveGame(tx, game); err != nil {
			return err
		}

		setup, err = e.buildSetup(tx, game, state)
		return err
	})
	if err != nil {
		return nil, err
	}
	return setup, nil
}

// DescribeHand rebuilds the setup of the current hand without touching
// any state. Safe to call any number of times.
func (e *Engine) DescribeHand(gameCode string) (*HandSetup, error) {
	var setup *HandSetup
	err := e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		setup, err = e.buildSetup(tx, game, state)
		return err
	})
	if err != nil {
		return nil, err
	}
	return setup, nil
}

// buildSetup assembles the per-seat view of the current hand from the
// stored table state.
func (e *Engine) buildSetup(tx *gorm.DB, game *store.Game, state *store.TableState) (*HandSetup, error) {
	seats, err := store.SeatsForGame(tx, game.ID)
	if err != nil {
		return nil, err
	}
	setup := &HandSetup{
		HandNum:    state.HandNum,
		ButtonSeat: state.ButtonSeat,
		SBSeat:     state.SBSeat,
		BBSeat:     state.BBSeat,
		SmallBlind: game.SmallBlind,
		BigBlind:   game.BigBlind,
		Variant:    state.Variant,
		BombPot:    state.BombPotThisHand,
	}
	if state.BombPotThisHand {
		settings, err := store.SettingsForGame(tx, game.ID)
		if err != nil {
			return nil, err
		}
		setup.DoubleBoard = settings.DoubleBoardBombPot
		setup.BombPotBet = settings.BombPotBetMultiple * game.BigBlind
	}

	if len(state.ExcludedSeats) > 0 {
		if err := json.Unmarshal(state.ExcludedSeats, &setup.Excluded); err != nil {
			return nil, err
		}
	}

	var dealt []uint64
	if len(state.PrevHandSeats) > 0 {
		if err := json.Unmarshal(state.PrevHandSeats, &dealt); err != nil {
			return nil, err
		}
	}
	inHand := func(seatNo int, playerID uint64) bool {
		return seatNo < len(dealt) && dealt[seatNo] == playerID
	}

	active := 0
	for i := range seats {
		seat := &seats[i]
		setup.Seats = append(setup.Seats, SeatInfo{
			SeatNo:      seat.SeatNo,
			PlayerID:    seat.PlayerID,
			PlayerName:  seat.PlayerName,
			Stack:       seat.Stack,
			Status:      seat.Status,
			InHand:      inHand(seat.SeatNo, seat.PlayerID),
			MissedBlind: seat.MissedBlind,
			PostedBlind: seat.PostedBlind,
		})
		if seat.Status == store.SeatPlaying {
			active++
		}
	}
	setup.NotEnoughPlayers = active < 2
	return setup, nil
}

// HandFinished records the end of a hand: rake accrues on the table and
// every queued update applies at this boundary.
func (e *Engine) HandFinished(gameCode string, handNum int, rake int64) error {
	var game *store.Game
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		if handNum != 0 && handNum != state.HandNum {
			// A stale report for a hand already accounted for.
			return nil
		}
		if rake > 0 && state.RakeHandNum != state.HandNum {
			state.RakeCollected += rake
			state.RakeHandNum = state.HandNum
			return store.UpdateTableState(tx, state)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return e.DrainPendingUpdates(game.ID)
}

// PinButton fixes the button on a seat for the next hand; blinds still
// walk normally and recomputation resumes on the hand after.
func (e *Engine) PinButton(gameCode string, hostID uint64, seatNo int) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if err := e.requireHostAuthority(game, hostID); err != nil {
			return err
		}
		if seatNo < 1 || seatNo > game.MaxSeats {
			return ErrSeatOutOfRange
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		state.ButtonSeat = seatNo
		state.RecomputeButton = false
		return store.UpdateTableState(tx, state)
	})
}
