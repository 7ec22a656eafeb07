package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubpoker/tablekeeper/internal/store"
)

func TestRotateVariantFixedGame(t *testing.T) {
	game := &store.Game{Variant: store.VariantPLO}
	state := &store.TableState{Variant: store.VariantPLO}
	require.Equal(t, store.VariantPLO, rotateVariant(game, state, 5, true))
}

func TestRotateVariantRoundOfEach(t *testing.T) {
	game := &store.Game{
		Variant:          store.VariantROE,
		RotationVariants: "holdem,plo,plo_hilo",
	}
	state := &store.TableState{Variant: store.VariantHoldem}

	// Hand 1 starts on the first entry.
	require.Equal(t, store.VariantHoldem, rotateVariant(game, state, 1, false))

	// Mid-orbit hands hold the current variant.
	require.Equal(t, store.VariantHoldem, rotateVariant(game, state, 4, false))

	// An orbit advances the list.
	require.Equal(t, store.VariantPLO, rotateVariant(game, state, 8, true))

	state.Variant = store.VariantPLOHiLo
	// The list wraps to the start.
	require.Equal(t, store.VariantHoldem, rotateVariant(game, state, 20, true))
}

func TestRotateVariantDealerChoiceHolds(t *testing.T) {
	game := &store.Game{
		Variant:              store.VariantDealerChoice,
		DealerChoiceVariants: "plo,holdem",
	}
	state := &store.TableState{Variant: store.VariantHoldem}

	require.Equal(t, store.VariantPLO, rotateVariant(game, state, 1, false))
	// After hand 1 the current pick holds regardless of orbits; only a
	// new pick changes it.
	require.Equal(t, store.VariantHoldem, rotateVariant(game, state, 9, true))
}

func TestParseVariantListSkipsUnknown(t *testing.T) {
	variants := parseVariantList("holdem, bogus ,plo,")
	require.Equal(t, []store.GameVariant{store.VariantHoldem, store.VariantPLO}, variants)
}

func TestSetDealerChoice(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantDealerChoice
	game.DealerChoiceVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	state := f.tableState()
	state.DealerChoiceSeat = 2
	require.NoError(t, store.UpdateTableState(f.store.DB(), state))

	require.NoError(t, f.engine.SetDealerChoice(testGameCode, 2, store.VariantPLO))

	state = f.tableState()
	require.Equal(t, store.VariantPLO, state.Variant)
	require.Equal(t, store.VariantHoldem, state.PrevVariant)
	require.True(t, f.events.has(EventVariantChanged))
}

func TestSetDealerChoiceWrongSeatRejected(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantDealerChoice
	game.DealerChoiceVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)

	state := f.tableState()
	state.DealerChoiceSeat = 2
	require.NoError(t, store.UpdateTableState(f.store.DB(), state))

	err := f.engine.SetDealerChoice(testGameCode, 1, store.VariantPLO)
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestSetDealerChoiceRejectsUnlistedVariant(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantDealerChoice
	game.DealerChoiceVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)

	err := f.engine.SetDealerChoice(testGameCode, 1, store.VariantFiveCardPLO)
	require.ErrorIs(t, err, ErrVariantNotAllowed)
}

func TestSetDealerChoiceOnFixedGameRejected(t *testing.T) {
	f := newFixture(t)
	f.seat(1, 1, 10000)
	err := f.engine.SetDealerChoice(testGameCode, 1, store.VariantPLO)
	require.ErrorIs(t, err, ErrVariantNotAllowed)
}

func TestDealerChoiceTimeoutKeepsVariant(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantDealerChoice
	game.DealerChoiceVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)

	f.engine.HandleTimerExpiry(f.game.ID, 0, store.PurposeDealerChoice)
	require.Equal(t, store.VariantHoldem, f.tableState().Variant)
	require.True(t, f.events.has(EventVariantChanged))
}

func TestROEVariantAdvancesOnOrbitInGame(t *testing.T) {
	f := newFixture(t)
	game := f.reloadGame()
	game.Variant = store.VariantROE
	game.RotationVariants = "holdem,plo"
	require.NoError(t, store.SaveGame(f.store.DB(), game))
	f.seat(1, 1, 10000)
	f.seat(2, 2, 10000)
	f.seat(3, 3, 10000)

	setup, err := f.engine.AdvanceToHand(testGameCode, 0)
	require.NoError(t, err)
	require.Equal(t, store.VariantHoldem, setup.Variant)

	// Three-handed, one full orbit takes three hands; the wrap back to
	// seat 1 flips the variant.
	setup, err = f.engine.AdvanceToHand(testGameCode, 1)
	require.NoError(t, err)
	require.Equal(t, store.VariantHoldem, setup.Variant)
	setup, err = f.engine.AdvanceToHand(testGameCode, 2)
	require.NoError(t, err)
	require.Equal(t, store.VariantHoldem, setup.Variant)
	setup, err = f.engine.AdvanceToHand(testGameCode, 3)
	require.NoError(t, err)
	require.Equal(t, store.VariantPLO, setup.Variant)
}
