package store

import (
	"errors"

	"gorm.io/gorm"
)

// GameByCode loads a game by its public code.
func GameByCode(db *gorm.DB, code string) (*Game, error) {
	var game Game
	err := db.Where("code = ?", code).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GameByID loads a game by primary key.
func GameByID(db *gorm.DB, id uint64) (*Game, error) {
	var game Game
	err := db.Where("id = ?", id).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// SaveGame persists game mutations.
func SaveGame(db *gorm.DB, game *Game) error {
	return db.Save(game).Error
}

// SettingsForGame loads the per-game settings row.
func SettingsForGame(db *gorm.DB, gameID uint64) (*GameSettings, error) {
	var settings GameSettings
	err := db.Where("game_id = ?", gameID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// TableStateForGame loads the single mutable state row for a game.
func TableStateForGame(db *gorm.DB, gameID uint64) (*TableState, error) {
	var state TableState
	err := db.Where("game_id = ?", gameID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// UpdateTableState writes the state row back, guarded by the version
// that was read. On success the in-memory version is bumped to match.
func UpdateTableState(db *gorm.DB, state *TableState) error {
	readVersion := state.Version
	state.Version++
	res := db.Model(&TableState{}).
		Where("id = ? AND version = ?", state.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(state)
	if res.Error != nil {
		state.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		state.Version = readVersion
		return ErrStaleVersion
	}
	return nil
}

// SeatsForGame returns all seated players (seat > 0) ordered by seat.
func SeatsForGame(db *gorm.DB, gameID uint64) ([]SeatAssignment, error) {
	var seats []SeatAssignment
	err := db.Where("game_id = ? AND seat_no > 0", gameID).
		Order("seat_no asc").
		Find(&seats).Error
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatByPlayer returns the assignment row for a player in a game,
// seated or not.
func SeatByPlayer(db *gorm.DB, gameID, playerID uint64) (*SeatAssignment, error) {
	var seat SeatAssignment
	err := db.Where("game_id = ? AND player_id = ?", gameID, playerID).
		First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// SeatBySeatNo returns the occupant of a seat, or ErrNotFound when the
// seat is open.
func SeatBySeatNo(db *gorm.DB, gameID uint64, seatNo int) (*SeatAssignment, error) {
	var seat SeatAssignment
	err := db.Where("game_id = ? AND seat_no = ?", gameID, seatNo).
		First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// UpdateSeat writes a seat assignment back, guarded by the version that
// was read. A seat transition is always this single atomic update.
func UpdateSeat(db *gorm.DB, seat *SeatAssignment) error {
	readVersion := seat.Version
	seat.Version++
	res := db.Model(&SeatAssignment{}).
		Where("id = ? AND version = ?", seat.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(seat)
	if res.Error != nil {
		seat.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		seat.Version = readVersion
		return ErrStaleVersion
	}
	return nil
}

// OccupiedSeatCount counts seats currently held in a game.
func OccupiedSeatCount(db *gorm.DB, gameID uint64) (int, error) {
	var count int64
	err := db.Model(&SeatAssignment{}).
		Where("game_id = ? AND seat_no > 0", gameID).
		Count(&count).Error
	return int(count), err
}

// AppendPending records a deferred command.
func AppendPending(db *gorm.DB, update *PendingUpdate) error {
	return db.Create(update).Error
}

// PendingForGame returns the queue in insertion order.
func PendingForGame(db *gorm.DB, gameID uint64) ([]PendingUpdate, error) {
	var updates []PendingUpdate
	err := db.Where("game_id = ?", gameID).Order("id asc").Find(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// PendingCount counts queued rows of one kind.
func PendingCount(db *gorm.DB, gameID uint64, kind PendingKind) (int, error) {
	var count int64
	err := db.Model(&PendingUpdate{}).
		Where("game_id = ? AND kind = ?", gameID, kind).
		Count(&count).Error
	return int(count), err
}

// PendingByPlayerKind finds a queued row for one player and kind.
func PendingByPlayerKind(db *gorm.DB, gameID, playerID uint64, kind PendingKind) (*PendingUpdate, error) {
	var update PendingUpdate
	err := db.Where("game_id = ? AND player_id = ? AND kind = ?", gameID, playerID, kind).
		First(&update).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// DeletePending removes one queued row.
func DeletePending(db *gorm.DB, id uint64) error {
	return db.Delete(&PendingUpdate{}, "id = ?", id).Error
}

// DeletePendingForGame clears the whole queue for a game.
func DeletePendingForGame(db *gorm.DB, gameID uint64) error {
	return db.Delete(&PendingUpdate{}, "game_id = ?", gameID).Error
}

// DeletePendingKind clears queued rows of one kind.
func DeletePendingKind(db *gorm.DB, gameID uint64, kind PendingKind) error {
	return db.Delete(&PendingUpdate{}, "game_id = ? AND kind = ?", gameID, kind).Error
}

// OfferForGame returns the in-flight seat-change offer, if any.
func OfferForGame(db *gorm.DB, gameID uint64) (*SeatChangeOffer, error) {
	var offer SeatChangeOffer
	err := db.Where("game_id = ?", gameID).First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// SaveOffer persists a seat-change offer.
func SaveOffer(db *gorm.DB, offer *SeatChangeOffer) error {
	return db.Save(offer).Error
}

// DeleteOfferForGame removes the in-flight offer.
func DeleteOfferForGame(db *gorm.DB, gameID uint64) error {
	return db.Delete(&SeatChangeOffer{}, "game_id = ?", gameID).Error
}

// ReseatSeats returns the host-reseat scratch layout ordered by seat.
func ReseatSeats(db *gorm.DB, gameID uint64) ([]HostReseatSeat, error) {
	var seats []HostReseatSeat
	err := db.Where("game_id = ?", gameID).Order("seat_no asc").Find(&seats).Error
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// ReseatSeat returns one scratch seat.
func ReseatSeat(db *gorm.DB, gameID uint64, seatNo int) (*HostReseatSeat, error) {
	var seat HostReseatSeat
	err := db.Where("game_id = ? AND seat_no = ?", gameID, seatNo).First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// SaveReseatSeat persists one scratch seat.
func SaveReseatSeat(db *gorm.DB, seat *HostReseatSeat) error {
	return db.Save(seat).Error
}

// DeleteReseatForGame discards the scratch layout.
func DeleteReseatForGame(db *gorm.DB, gameID uint64) error {
	return db.Delete(&HostReseatSeat{}, "game_id = ?", gameID).Error
}

// Member returns the club membership row for a (club, player) pair.
func Member(db *gorm.DB, clubCode string, playerID uint64) (*ClubMember, error) {
	var member ClubMember
	err := db.Where("club_code = ? AND player_id = ?", clubCode, playerID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}
