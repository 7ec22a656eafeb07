package store

// GameStatus is the lifecycle status of a game.
type GameStatus int

const (
	GameConfigured GameStatus = iota
	GameActive
	GamePaused
	GameEnded
)

// String returns the string representation of a game status
func (s GameStatus) String() string {
	switch s {
	case GameConfigured:
		return "configured"
	case GameActive:
		return "active"
	case GamePaused:
		return "paused"
	case GameEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TableStatus is the status of the table itself, orthogonal to the game
// lifecycle while the game is active.
type TableStatus int

const (
	TableWaiting TableStatus = iota
	TableGameRunning
	TableHostReseatInProgress
	TableNotEnoughPlayers
)

// String returns the string representation of a table status
func (s TableStatus) String() string {
	switch s {
	case TableWaiting:
		return "waiting"
	case TableGameRunning:
		return "game_running"
	case TableHostReseatInProgress:
		return "host_reseat_in_progress"
	case TableNotEnoughPlayers:
		return "not_enough_players"
	default:
		return "unknown"
	}
}

// SeatStatus is the lifecycle status of a seated (or recently seated) player.
type SeatStatus int

const (
	SeatNotPlaying SeatStatus = iota
	SeatPlaying
	SeatInBreak
	SeatWaitForBuyin
	SeatWaitForBuyinApproval
	SeatNeedToPostBlind
	SeatPendingUpdates
	SeatKickedOut
	SeatLeft
)

// String returns the string representation of a seat status
func (s SeatStatus) String() string {
	switch s {
	case SeatNotPlaying:
		return "not_playing"
	case SeatPlaying:
		return "playing"
	case SeatInBreak:
		return "in_break"
	case SeatWaitForBuyin:
		return "wait_for_buyin"
	case SeatWaitForBuyinApproval:
		return "wait_for_buyin_approval"
	case SeatNeedToPostBlind:
		return "need_to_post_blind"
	case SeatPendingUpdates:
		return "pending_updates"
	case SeatKickedOut:
		return "kicked_out"
	case SeatLeft:
		return "left"
	default:
		return "unknown"
	}
}

// PendingKind identifies a deferred command recorded while a hand is in
// flight. Rows are drained at the next hand boundary.
type PendingKind int

const (
	KindKickout PendingKind = iota
	KindLeave
	KindEndGame
	KindPauseGame
	KindBuyinApproved
	KindReloadApproved
	KindWaitBuyinApproval
	KindWaitReloadApproval
	KindSwitchSeat
	KindTakeBreak
	KindDealerChoicePrompt
)

// String returns the string representation of a pending update kind
func (k PendingKind) String() string {
	switch k {
	case KindKickout:
		return "kickout"
	case KindLeave:
		return "leave"
	case KindEndGame:
		return "end_game"
	case KindPauseGame:
		return "pause_game"
	case KindBuyinApproved:
		return "buyin_approved"
	case KindReloadApproved:
		return "reload_approved"
	case KindWaitBuyinApproval:
		return "wait_buyin_approval"
	case KindWaitReloadApproval:
		return "wait_reload_approval"
	case KindSwitchSeat:
		return "switch_seat"
	case KindTakeBreak:
		return "take_break"
	case KindDealerChoicePrompt:
		return "dealer_choice_prompt"
	default:
		return "unknown"
	}
}

// GameVariant is the poker variant dealt for a hand.
type GameVariant int

const (
	VariantUnknown GameVariant = iota
	VariantHoldem
	VariantPLO
	VariantPLOHiLo
	VariantFiveCardPLO
	VariantROE
	VariantDealerChoice
)

// String returns the string representation of a game variant
func (v GameVariant) String() string {
	switch v {
	case VariantHoldem:
		return "holdem"
	case VariantPLO:
		return "plo"
	case VariantPLOHiLo:
		return "plo_hilo"
	case VariantFiveCardPLO:
		return "five_card_plo"
	case VariantROE:
		return "roe"
	case VariantDealerChoice:
		return "dealer_choice"
	default:
		return "unknown"
	}
}

// ParseVariant maps a variant name to its enum value. Unrecognized names
// return VariantUnknown.
func ParseVariant(name string) GameVariant {
	switch name {
	case "holdem":
		return VariantHoldem
	case "plo":
		return VariantPLO
	case "plo_hilo":
		return VariantPLOHiLo
	case "five_card_plo":
		return VariantFiveCardPLO
	case "roe":
		return VariantROE
	case "dealer_choice":
		return VariantDealerChoice
	default:
		return VariantUnknown
	}
}

// TimerPurpose keys an out-of-process timer to the handler that should
// run when it fires.
type TimerPurpose int

const (
	PurposeBuyin TimerPurpose = iota
	PurposeBuyinApproval
	PurposeSeatChange
	PurposeBreak
	PurposeDealerChoice
)

// String returns the string representation of a timer purpose
func (p TimerPurpose) String() string {
	switch p {
	case PurposeBuyin:
		return "buyin"
	case PurposeBuyinApproval:
		return "buyin_approval"
	case PurposeSeatChange:
		return "seat_change"
	case PurposeBreak:
		return "break"
	case PurposeDealerChoice:
		return "dealer_choice"
	default:
		return "unknown"
	}
}
