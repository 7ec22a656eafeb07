package engine

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clubpoker/tablekeeper/internal/config"
	"github.com/clubpoker/tablekeeper/internal/store"
)

const (
	testGameCode = "TEST01"
	testHostID   = uint64(100)
)

type timerCall struct {
	gameID    uint64
	playerID  uint64
	purpose   store.TimerPurpose
	expiresAt time.Time
}

// fakeTimers records timer traffic instead of arming anything. Expiry
// paths are exercised by calling the engine handlers directly.
type fakeTimers struct {
	mu        sync.Mutex
	scheduled []timerCall
	cancelled []timerCall
}

func (f *fakeTimers) Schedule(gameID, playerID uint64, purpose store.TimerPurpose, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, timerCall{gameID, playerID, purpose, expiresAt})
}

func (f *fakeTimers) Cancel(gameID, playerID uint64, purpose store.TimerPurpose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, timerCall{gameID: gameID, playerID: playerID, purpose: purpose})
}

func (f *fakeTimers) scheduledPurposes() []store.TimerPurpose {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purposes []store.TimerPurpose
	for _, call := range f.scheduled {
		purposes = append(purposes, call.purpose)
	}
	return purposes
}

// fakeClubs serves membership data from maps.
type fakeClubs struct {
	members     map[uint64]*Membership
	outstanding map[uint64]int64
}

func (f *fakeClubs) Member(clubCode string, playerID uint64) (*Membership, error) {
	if m, ok := f.members[playerID]; ok {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeClubs) OutstandingBuyins(clubCode string, playerID uint64) (int64, error) {
	return f.outstanding[playerID], nil
}

// eventRecorder captures published events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []EventType
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func (r *eventRecorder) has(t EventType) bool {
	for _, got := range r.types() {
		if got == t {
			return true
		}
	}
	return false
}

type fixture struct {
	t      *testing.T
	store  *store.Store
	engine *Engine
	clock  *quartz.Mock
	timers *fakeTimers
	clubs  *fakeClubs
	events *eventRecorder
	game   *store.Game
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	logger := log.New(io.Discard)
	st, err := store.New(db, logger)
	require.NoError(t, err)

	f := &fixture{
		t:      t,
		store:  st,
		clock:  quartz.NewMock(t),
		timers: &fakeTimers{},
		clubs: &fakeClubs{
			members:     map[uint64]*Membership{},
			outstanding: map[uint64]int64{},
		},
		events: &eventRecorder{},
	}
	f.engine = New(st, f.clock, f.timers, f.clubs, f.events,
		config.Default().Engine, logger)
	f.createGame()
	return f
}

func (f *fixture) createGame() {
	f.t.Helper()
	game := &store.Game{
		Code:              testGameCode,
		ClubCode:          "CLUB01",
		HostPlayerID:      testHostID,
		MaxSeats:          9,
		SmallBlind:        100,
		BigBlind:          200,
		BuyinMin:          4000,
		BuyinMax:          40000,
		Variant:           store.VariantHoldem,
		Status:            store.GameActive,
		TableStatus:       store.TableWaiting,
		SeatChangeAllowed: true,
	}
	require.NoError(f.t, f.store.DB().Create(game).Error)
	require.NoError(f.t, f.store.DB().Create(&store.GameSettings{
		GameID:             game.ID,
		BombPotBetMultiple: 5,
		BuyinTimeout:       time.Minute,
		BreakLength:        5 * time.Minute,
	}).Error)
	require.NoError(f.t, f.store.DB().Create(&store.TableState{
		GameID:          game.ID,
		RecomputeButton: true,
		Variant:         store.VariantHoldem,
	}).Error)
	f.game = game
}

// seat places a player with a stack in SeatPlaying status.
func (f *fixture) seat(playerID uint64, seatNo int, stack int64) *store.SeatAssignment {
	f.t.Helper()
	return f.seatWithStatus(playerID, seatNo, stack, store.SeatPlaying)
}

func (f *fixture) seatWithStatus(playerID uint64, seatNo int, stack int64, status store.SeatStatus) *store.SeatAssignment {
	f.t.Helper()
	now := f.clock.Now()
	seat := &store.SeatAssignment{
		GameID:     f.game.ID,
		PlayerID:   playerID,
		PlayerName: fmt.Sprintf("player-%d", playerID),
		SeatNo:     seatNo,
		Stack:      stack,
		BuyIn:      stack,
		BuyinCount: 1,
		Status:     status,
		SatAt:      &now,
	}
	require.NoError(f.t, f.store.DB().Create(seat).Error)
	return seat
}

func (f *fixture) reloadGame() *store.Game {
	f.t.Helper()
	game, err := store.GameByCode(f.store.DB(), testGameCode)
	require.NoError(f.t, err)
	f.game = game
	return game
}

func (f *fixture) tableState() *store.TableState {
	f.t.Helper()
	state, err := store.TableStateForGame(f.store.DB(), f.game.ID)
	require.NoError(f.t, err)
	return state
}

func (f *fixture) seatOf(playerID uint64) *store.SeatAssignment {
	f.t.Helper()
	seat, err := store.SeatByPlayer(f.store.DB(), f.game.ID, playerID)
	require.NoError(f.t, err)
	return seat
}

// setRunning marks a hand in flight so disruptive actions queue up.
func (f *fixture) setRunning() {
	f.t.Helper()
	game := f.reloadGame()
	game.Status = store.GameActive
	game.TableStatus = store.TableGameRunning
	require.NoError(f.t, store.SaveGame(f.store.DB(), game))
	f.game = game
}

func (f *fixture) pendingKinds() []store.PendingKind {
	f.t.Helper()
	updates, err := store.PendingForGame(f.store.DB(), f.game.ID)
	require.NoError(f.t, err)
	var kinds []store.PendingKind
	for _, update := range updates {
		kinds = append(kinds, update.Kind)
	}
	return kinds
}
