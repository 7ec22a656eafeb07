package engine

import "github.com/clubpoker/tablekeeper/internal/store"

// SeatState is the calculator's view of one seat at the hand boundary.
type SeatState struct {
	Occupied    bool
	Status      store.SeatStatus
	MissedBlind bool
	PostedBlind bool
}

// BlindInput carries the previous table state and the current seat
// occupancy into the button/blind computation.
type BlindInput struct {
	MaxSeats int
	HandNum  int // the hand about to be dealt

	PrevButton int
	PrevSB     int
	PrevBB     int

	// Recompute is false when an operator pinned the button manually;
	// the button then stays where it is and only the blinds are walked.
	Recompute bool

	OrbitRefSeat int

	Seats map[int]SeatState
}

// BlindResult is the deterministic output of ComputeBlinds. Given the
// same input it always produces the same result, which makes a retried
// hand advance after a crash safe.
type BlindResult struct {
	Button     int
	SmallBlind int
	BigBlind   int

	// Excluded lists seats that hold a positional marker this hand but
	// sit out of it (dead button, dead small blind).
	Excluded []int

	// MissedBlindSeats lists occupied seats skipped on the way to the
	// big blind whose occupant was on break or awaiting a buy-in.
	MissedBlindSeats []int

	// ClearMissedBlind lists seats whose missed-blind flag must be
	// reset because the seat became the natural big blind.
	ClearMissedBlind []int

	OrbitPassed bool
}

// active reports whether a seat holds a player who can be dealt in.
func (in BlindInput) active(seat int) bool {
	s, ok := in.Seats[seat]
	return ok && s.Occupied && s.Status == store.SeatPlaying
}

func (in BlindInput) activeCount() int {
	count := 0
	for seat := 1; seat <= in.MaxSeats; seat++ {
		if in.active(seat) {
			count++
		}
	}
	return count
}

// nextActive walks forward from seat (exclusive) to the next seat with
// an active player, wrapping past MaxSeats. Returns 0 when none exists.
func (in BlindInput) nextActive(seat int) int {
	for i := 0; i < in.MaxSeats; i++ {
		seat++
		if seat > in.MaxSeats {
			seat = 1
		}
		if in.active(seat) {
			return seat
		}
	}
	return 0
}

// prevActive walks backward from seat (exclusive) to the nearest seat
// with an active player, wrapping below 1. Returns 0 when none exists.
func (in BlindInput) prevActive(seat int) int {
	for i := 0; i < in.MaxSeats; i++ {
		seat--
		if seat < 1 {
			seat = in.MaxSeats
		}
		if in.active(seat) {
			return seat
		}
	}
	return 0
}

// ComputeBlinds produces the next button, small-blind and big-blind
// seats, the set of seats excluded from the hand, and whether the
// button completed an orbit. Pure function over its input.
func ComputeBlinds(in BlindInput) BlindResult {
	res := BlindResult{
		Button:     in.PrevButton,
		SmallBlind: in.PrevSB,
		BigBlind:   in.PrevBB,
	}
	if in.activeCount() == 0 {
		return res
	}
	headsUp := in.activeCount() == 2
	oldButton := in.PrevButton

	switch {
	case in.HandNum <= 1:
		// Hand 1: the button starts at the lowest occupied seat.
		if in.active(1) {
			res.Button = 1
		} else {
			res.Button = in.nextActive(1)
		}
	case !in.Recompute:
		// Pinned button: passthrough.
	default:
		if headsUp {
			res.Button = in.PrevBB
		} else {
			res.Button = in.PrevSB
		}
		if !in.active(res.Button) {
			// The inherited seat emptied out since the last hand. The
			// marker walks back to the nearest occupied seat and the
			// vacated seat is dead for this hand.
			vacated := res.Button
			res.Button = in.prevActive(vacated)
			res.Excluded = append(res.Excluded, vacated)
		} else if s := in.Seats[res.Button]; s.MissedBlind && !s.PostedBlind {
			// Dead button: the occupant owes a blind and has not posted.
			res.Excluded = append(res.Excluded, res.Button)
		}
	}

	switch {
	case headsUp:
		res.SmallBlind = res.Button
	case in.HandNum <= 1 || !in.Recompute:
		res.SmallBlind = in.nextActive(res.Button)
	default:
		res.SmallBlind = in.PrevBB
		if !in.active(res.SmallBlind) {
			// Dead small blind.
			res.Excluded = append(res.Excluded, res.SmallBlind)
		}
	}

	// The big blind is the next active seat after the small blind.
	// Occupied seats passed over while their player is on break or
	// waiting for a buy-in miss the blind; the seat that ends up as the
	// big blind always pays in, so its missed-blind debt is cleared.
	bb := res.SmallBlind
	for i := 0; i < in.MaxSeats; i++ {
		bb++
		if bb > in.MaxSeats {
			bb = 1
		}
		s, ok := in.Seats[bb]
		if !ok || !s.Occupied {
			continue
		}
		if s.Status == store.SeatPlaying {
			res.BigBlind = bb
			if s.MissedBlind {
				res.ClearMissedBlind = append(res.ClearMissedBlind, bb)
			}
			break
		}
		if s.Status == store.SeatInBreak || s.Status == store.SeatWaitForBuyin {
			res.MissedBlindSeats = append(res.MissedBlindSeats, bb)
		}
	}

	if in.HandNum > 1 && in.Recompute && res.Button < oldButton {
		// The button wrapped. An orbit passed if the reference seat
		// lies in the wrapped range.
		if in.OrbitRefSeat > oldButton || in.OrbitRefSeat <= res.Button {
			res.OrbitPassed = true
		}
	}

	return res
}
