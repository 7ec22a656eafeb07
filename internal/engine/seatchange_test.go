package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubpoker/tablekeeper/internal/store"
)

func TestSeatChangeOfferGoesToOldestRequester(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)

	// Seat 5 opens up.
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), offer.PlayerID)
	require.Equal(t, 5, offer.OpenSeat)
	require.True(t, f.events.has(EventSeatChangePrompt))
	require.Contains(t, f.timers.scheduledPurposes(), store.PurposeSeatChange)
}

func TestSeatChangeConfirmMovesPlayer(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	require.NoError(t, f.engine.ConfirmSeatChange(testGameCode, 2, 0))

	seat := f.seatOf(2)
	require.Equal(t, 5, seat.SeatNo)
	require.Nil(t, seat.SeatChangeRequestedAt)
	require.True(t, f.events.has(EventPlayerSeatMove))

	// The offer is gone and nothing else is outstanding.
	_, err = store.OfferForGame(f.store.DB(), f.game.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeatChangeDeclinePromotesNextRequester(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	require.NoError(t, f.engine.DeclineSeatChange(testGameCode, 2))

	// Declining drops player 2 from the queue; the same seat is offered
	// to player 3.
	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), offer.PlayerID)
	require.Equal(t, 5, offer.OpenSeat)
	require.Nil(t, f.seatOf(2).SeatChangeRequestedAt)
}

func TestSeatChangePromptTimeoutAdvancesQueue(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	f.engine.HandleTimerExpiry(f.game.ID, 2, store.PurposeSeatChange)

	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), offer.PlayerID)
	require.True(t, f.events.has(EventSeatChangeDeclined))
}

func TestSeatChangeConfirmLosesRaceForSeat(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	// Someone sits in seat 5 before the confirmation arrives.
	f.seat(9, 5, 10000)

	err = f.engine.ConfirmSeatChange(testGameCode, 2, 0)
	require.ErrorIs(t, err, ErrSeatOccupied)
	require.Equal(t, 2, f.seatOf(2).SeatNo)
}

func TestSeatChangeRequiresPlayingStatus(t *testing.T) {
	f := newFixture(t)
	f.seatWithStatus(1, 1, 0, store.SeatWaitForBuyin)

	_, err := f.engine.RequestSeatChange(testGameCode, 1)
	require.ErrorIs(t, err, ErrNotPlaying)
}

func TestSeatChangeQueueSkippedWhenDisallowed(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.SeatChangeAllowed = false
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	_, err = store.OfferForGame(f.store.DB(), f.game.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeatChangeSingleOfferOutstanding(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)

	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))
	// A second seat opens while the first prompt is outstanding.
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 6))

	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), offer.PlayerID)
	require.Equal(t, 5, offer.OpenSeat)
}

func TestSeatChangeCancelRequest(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.CancelSeatChangeRequest(testGameCode, 2))

	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))
	_, err = store.OfferForGame(f.store.DB(), f.game.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfirmSeatChangeMidHandDefersToBoundary(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))

	f.setRunning()
	require.NoError(t, f.engine.ConfirmSeatChange(testGameCode, 2, 0))

	// The player keeps the old seat until the hand ends.
	require.Equal(t, 2, f.seatOf(2).SeatNo)
	require.Equal(t, []store.PendingKind{store.KindSwitchSeat}, f.pendingKinds())
	_, err = store.OfferForGame(f.store.DB(), f.game.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))
	require.Equal(t, 5, f.seatOf(2).SeatNo)
	require.Empty(t, f.pendingKinds())
	require.True(t, f.events.has(EventPlayerSeatMove))
}

func TestQueuedSeatSwitchDropsWhenSeatTaken(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))
	f.setRunning()
	require.NoError(t, f.engine.ConfirmSeatChange(testGameCode, 2, 0))

	// Someone sits in seat 5 before the boundary.
	f.seat(9, 5, 10000)

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))
	require.Equal(t, 2, f.seatOf(2).SeatNo)
	require.Empty(t, f.pendingKinds())
}

func TestSeatChangeVacatedSeatServesQueueAgain(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	_, err := f.engine.RequestSeatChange(testGameCode, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)

	require.NoError(t, f.engine.serveSeatChangeQueue(f.game.ID, 5))
	require.NoError(t, f.engine.ConfirmSeatChange(testGameCode, 2, 0))

	// Player 2 vacated seat 2; it chains to player 3.
	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), offer.PlayerID)
	require.Equal(t, 2, offer.OpenSeat)
}
