package store

import (
	"time"

	"gorm.io/datatypes"
)

// Game is the per-table configuration owned by the club/host. It is
// immutable while a hand is running except through engine operations.
type Game struct {
	ID           uint64 `gorm:"primaryKey"`
	Code         string `gorm:"uniqueIndex;size:32"`
	ClubCode     string `gorm:"index;size:32"`
	HostPlayerID uint64

	MaxSeats    int
	SmallBlind  int64
	BigBlind    int64
	Ante        int64
	StraddleBet int64
	BuyinMin    int64
	BuyinMax    int64

	Variant              GameVariant
	RotationVariants     string // comma-separated list for round-of-each
	DealerChoiceVariants string // comma-separated list for dealer's choice

	Status      GameStatus
	TableStatus TableStatus

	// PrevTableStatus holds the table status a host reseat interrupted,
	// restored when the reseat ends.
	PrevTableStatus TableStatus

	RakePercent   float64
	RakeCap       int64
	ActionTimeSec int

	SeatChangeAllowed bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GameSettings carries the per-game knobs that can be changed between
// hands without touching the core Game row.
type GameSettings struct {
	GameID uint64 `gorm:"uniqueIndex"`

	BombPotEnabled      bool
	BombPotEveryHand    bool
	BombPotBetMultiple  int64 // bet = multiple x big blind
	BombPotInterval     time.Duration
	BombPotHandInterval int // fire every N hands; 0 means time-based only
	DoubleBoardBombPot  bool

	BreakAllowed  bool
	BreakLength   time.Duration
	BuyinTimeout  time.Duration
	RunItTwice    bool
	AutoApproval  bool // game-level buy-in auto approval (no club involved)
	ChipUnit      int64
	ResultPauseMs int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableState is the single mutable row per game touched on every hand
// boundary. Version implements optimistic locking: updates are applied
// only when the stored version matches the one that was read.
type TableState struct {
	ID     uint64 `gorm:"primaryKey"`
	GameID uint64 `gorm:"uniqueIndex"`

	HandNum    int
	ButtonSeat int
	SBSeat     int
	BBSeat     int

	// RecomputeButton is false only when an operator pinned the button
	// manually; the next advance re-enables it.
	RecomputeButton bool

	Variant     GameVariant
	PrevVariant GameVariant

	OrbitRefSeat int
	OrbitHandNum int // hand number when the orbit reference was last reset

	DealerChoiceSeat int

	BombPotThisHand    bool
	NextBombPotHandNum int
	LastBombPotAt      time.Time
	LastBombPotHandNum int

	// PrevHandSeats is the seat-indexed occupancy of the previous hand
	// (player ids, index 0 is a dealer filler). The live seat table may
	// already reflect changes made since that hand was dealt.
	PrevHandSeats datatypes.JSON

	// ExcludedSeats lists the seats sitting out of the current hand,
	// persisted so a retried advance reports the same exclusions.
	ExcludedSeats datatypes.JSON

	SeatedCount   int
	RakeCollected int64
	RakeHandNum   int // last hand whose rake was accrued

	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeatAssignment tracks one player in one game. Seat 0 means the player
// has no seat (left, kicked out, or in the waiting area). At most one
// row per (game, seat>0) exists at any time.
type SeatAssignment struct {
	ID         uint64 `gorm:"primaryKey"`
	GameID     uint64 `gorm:"index:idx_seat_game_player,unique"`
	PlayerID   uint64 `gorm:"index:idx_seat_game_player,unique"`
	PlayerName string `gorm:"size:64"`

	SeatNo     int
	Stack      int64
	BuyIn      int64
	BuyinCount int

	Status SeatStatus

	MissedBlind       bool
	PostedBlind       bool
	PostBlindNextHand bool
	InHandNextHand    bool

	BombPotOptIn   bool
	RunItTwice     bool
	AutoStraddle   bool
	MuckLosingHand bool

	BuyinExpiresAt        *time.Time
	BreakExpiresAt        *time.Time
	SeatChangeRequestedAt *time.Time

	SatAt       *time.Time
	SessionSecs int64

	// GameToken is issued by the session layer and only forwarded to the
	// game engine, never generated here.
	GameToken string `gorm:"size:128"`

	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingUpdate is a deferred command recorded because applying it
// immediately would disrupt a hand in progress.
type PendingUpdate struct {
	ID       uint64 `gorm:"primaryKey"`
	GameID   uint64 `gorm:"index"`
	PlayerID uint64
	Kind     PendingKind
	Amount   int64
	NewSeat  int
	Payload  datatypes.JSON

	CreatedAt time.Time
}

// SeatChangeOffer is the single in-flight seat offer for the player
// queue. Only one player is prompted at a time per game.
type SeatChangeOffer struct {
	ID        uint64 `gorm:"primaryKey"`
	GameID    uint64 `gorm:"uniqueIndex"`
	PlayerID  uint64
	OpenSeat  int
	ExpiresAt time.Time

	CreatedAt time.Time
}

// HostReseatSeat is one seat of the scratch layout the host rearranges
// during a bulk reseat. Live seats are untouched until commit.
type HostReseatSeat struct {
	ID         uint64 `gorm:"primaryKey"`
	GameID     uint64 `gorm:"index:idx_reseat_game_seat,unique"`
	SeatNo     int    `gorm:"index:idx_reseat_game_seat,unique"`
	OpenSeat   bool
	PlayerID   uint64
	PlayerName string `gorm:"size:64"`
	Stack      int64

	CreatedAt time.Time
}

// ClubMember holds the club-side approval data consulted by the buy-in
// workflow. CreditLimit nil means the member has no credit limit.
type ClubMember struct {
	ID           uint64 `gorm:"primaryKey"`
	ClubCode     string `gorm:"index:idx_member_club_player,unique;size:32"`
	PlayerID     uint64 `gorm:"index:idx_member_club_player,unique"`
	AutoApproval bool
	IsOwner      bool
	IsManager    bool
	CreditLimit  *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
