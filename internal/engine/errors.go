package engine

import "errors"

// Validation failures are rejected before any write; the transaction is
// never opened or is rolled back untouched.
var (
	ErrSeatOutOfRange     = errors.New("seat number out of range")
	ErrAmountOutOfBounds  = errors.New("amount outside buy-in bounds")
	ErrNotAuthorized      = errors.New("caller lacks host or manager authority")
	ErrNotSeated          = errors.New("player does not hold a seat")
	ErrNotPlaying         = errors.New("player is not in playing status")
	ErrGameEnded          = errors.New("game has ended")
	ErrGameNotPaused      = errors.New("game is not paused")
	ErrNoSeatsAvailable   = errors.New("no open seats available")
	ErrReseatInProgress   = errors.New("host seat change already in progress")
	ErrNoReseatInProgress = errors.New("no host seat change in progress")
	ErrNoOffer            = errors.New("no seat-change offer outstanding")
	ErrVariantNotAllowed  = errors.New("variant not in the configured choice list")
)

// ErrSeatOccupied is raised inside the transaction when two callers
// target the same open seat; the losing caller must retry.
var ErrSeatOccupied = errors.New("seat is already occupied")
