package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubpoker/tablekeeper/internal/store"
)

func TestDrainAppliesInQueueOrder(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)
	f.seat(4, 4, 10000)
	f.clubs.members[3] = &Membership{AutoApproval: true}
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	_, err := f.engine.RequestBuyIn(testGameCode, 3, 5000)
	require.NoError(t, err)
	require.NoError(t, f.engine.KickOutPlayer(testGameCode, testHostID, 4))
	require.Equal(t, []store.PendingKind{
		store.KindLeave, store.KindBuyinApproved, store.KindKickout,
	}, f.pendingKinds())

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	require.Zero(t, f.seatOf(2).SeatNo)
	require.Equal(t, store.SeatLeft, f.seatOf(2).Status)
	require.Equal(t, int64(15000), f.seatOf(3).Stack)
	require.Zero(t, f.seatOf(4).SeatNo)
	require.Equal(t, store.SeatKickedOut, f.seatOf(4).Status)
	require.Empty(t, f.pendingKinds())
	require.True(t, f.events.has(EventPendingDone))
}

func TestDrainEndGamePreemptsEverything(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	require.NoError(t, f.engine.EndGame(testGameCode, testHostID))

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	require.Equal(t, store.GameEnded, f.reloadGame().Status)
	// The leave was never applied; the whole queue is discarded.
	require.Equal(t, 2, f.seatOf(2).SeatNo)
	require.Empty(t, f.pendingKinds())
	require.True(t, f.events.has(EventGameEnded))
}

func TestDrainPausePreemptsRemainingRows(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	require.NoError(t, f.engine.PauseGame(testGameCode, testHostID))

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	require.Equal(t, store.GamePaused, f.reloadGame().Status)
	// Only the pause rows are consumed; the leave stays queued for the
	// drain that runs on resume.
	require.Equal(t, []store.PendingKind{store.KindLeave}, f.pendingKinds())
	require.True(t, f.events.has(EventGamePaused))
}

func TestResumeDrainsDeferredRows(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	require.NoError(t, f.engine.PauseGame(testGameCode, testHostID))
	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	require.NoError(t, f.engine.ResumeGame(testGameCode, testHostID))

	require.Equal(t, store.GameActive, f.reloadGame().Status)
	require.Zero(t, f.seatOf(2).SeatNo)
	require.Empty(t, f.pendingKinds())
	require.True(t, f.events.has(EventGameResumed))
}

func TestDrainLeavesApprovalWaitsQueued(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.clubs.members[2] = &Membership{CreditLimit: limit(1000)}
	f.setRunning()

	_, err := f.engine.RequestBuyIn(testGameCode, 2, 5000)
	require.NoError(t, err)

	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	// The host never decided; the row survives the boundary.
	require.Equal(t, []store.PendingKind{store.KindWaitBuyinApproval}, f.pendingKinds())
	require.Equal(t, int64(10000), f.seatOf(2).Stack)
}

func TestDrainOpensSeatForQueueService(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)
	_, err := f.engine.RequestSeatChange(testGameCode, 3)
	require.NoError(t, err)
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	// The freed seat reaches the seat-change queue in the same drain.
	offer, err := store.OfferForGame(f.store.DB(), f.game.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), offer.PlayerID)
	require.Equal(t, 2, offer.OpenSeat)
}

func TestDrainFlagsNotEnoughPlayers(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.setRunning()

	require.NoError(t, f.engine.LeaveGame(testGameCode, 2))
	require.NoError(t, f.engine.DrainPendingUpdates(f.game.ID))

	require.Equal(t, store.TableNotEnoughPlayers, f.reloadGame().TableStatus)
}

func TestDrainPromptsDealerChoice(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantDealerChoice
	game.DealerChoiceVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	// Advancing queues a prompt for the boundary after this hand.
	_, err := f.engine.AdvanceToHand(testGameCode, 0)
	require.NoError(t, err)
	require.Equal(t, []store.PendingKind{store.KindDealerChoicePrompt}, f.pendingKinds())

	require.NoError(t, f.engine.HandFinished(testGameCode, 1, 0))

	require.True(t, f.events.has(EventDealerChoicePrompt))
	require.Contains(t, f.timers.scheduledPurposes(), store.PurposeDealerChoice)
	// The seat after the button gets the choice.
	require.Equal(t, 2, f.tableState().DealerChoiceSeat)
	require.Empty(t, f.pendingKinds())
}
