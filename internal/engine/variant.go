package engine

import (
	"strings"

	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/store"
)

// parseVariantList splits a configured comma-separated variant list.
func parseVariantList(list string) []store.GameVariant {
	var variants []store.GameVariant
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v := store.ParseVariant(name); v != store.VariantUnknown {
			variants = append(variants, v)
		}
	}
	return variants
}

// rotateVariant advances the game variant for the new hand. For
// round-of-each games the list advances once per orbit, wrapping to the
// start. For dealer's choice the current pick holds; hand 1 starts both
// formats on the first configured entry.
func rotateVariant(game *store.Game, state *store.TableState, newHandNum int, orbitPassed bool) store.GameVariant {
	switch game.Variant {
	case store.VariantROE:
		variants := parseVariantList(game.RotationVariants)
		if len(variants) == 0 {
			return state.Variant
		}
		if newHandNum == 1 {
			return variants[0]
		}
		if !orbitPassed {
			return state.Variant
		}
		for i, v := range variants {
			if v == state.Variant {
				return variants[(i+1)%len(variants)]
			}
		}
		return variants[0]
	case store.VariantDealerChoice:
		if newHandNum == 1 {
			variants := parseVariantList(game.DealerChoiceVariants)
			if len(variants) > 0 {
				return variants[0]
			}
		}
		return state.Variant
	default:
		return game.Variant
	}
}

// dealerChoicePromptNeeded reports whether the distinguished seat must
// be asked to pick the next variant: whenever no choice has been made
// yet or an orbit passed since the last prompt.
func dealerChoicePromptNeeded(game *store.Game, state *store.TableState, orbitPassed bool) bool {
	if game.Variant != store.VariantDealerChoice {
		return false
	}
	return state.DealerChoiceSeat == 0 || orbitPassed
}

// SetDealerChoice records the variant picked by the prompted seat and
// cancels the prompt timer. The pick holds until the next prompt.
func (e *Engine) SetDealerChoice(gameCode string, playerID uint64, variant store.GameVariant) error {
	var game *store.Game
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = store.GameByCode(tx, gameCode)
		if err != nil {
			return err
		}
		if game.Variant != store.VariantDealerChoice {
			return ErrVariantNotAllowed
		}
		allowed := false
		for _, v := range parseVariantList(game.DealerChoiceVariants) {
			if v == variant {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrVariantNotAllowed
		}

		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		seat, err := store.SeatByPlayer(tx, game.ID, playerID)
		if err != nil {
			return err
		}
		if state.DealerChoiceSeat != 0 && seat.SeatNo != state.DealerChoiceSeat {
			return ErrNotAuthorized
		}

		state.PrevVariant = state.Variant
		state.Variant = variant
		return store.UpdateTableState(tx, state)
	})
	if err != nil {
		return err
	}

	e.timers.Cancel(game.ID, 0, store.PurposeDealerChoice)
	e.publish(EventVariantChanged, gameCode, map[string]any{
		"variant":  variant.String(),
		"pickedBy": playerID,
	})
	return nil
}

// dealerChoiceExpired keeps the previous variant when the prompted seat
// never answered.
func (e *Engine) dealerChoiceExpired(gameID uint64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		game, err := store.GameByID(tx, gameID)
		if err != nil {
			return err
		}
		state, err := store.TableStateForGame(tx, game.ID)
		if err != nil {
			return err
		}
		e.logger.Info("dealer choice prompt expired, keeping variant",
			"game", game.Code, "variant", state.Variant)
		e.publish(EventVariantChanged, game.Code, map[string]any{
			"variant": state.Variant.String(),
			"timeout": true,
		})
		return nil
	})
}
