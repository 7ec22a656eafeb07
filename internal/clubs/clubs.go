// Package clubs answers the membership questions the buy-in workflow
// asks: who auto-approves, who owns the club, and how much credit a
// member has left across the club's games.
package clubs

import (
	"errors"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/clubpoker/tablekeeper/internal/engine"
	"github.com/clubpoker/tablekeeper/internal/store"
)

// Service reads club membership data from the shared database.
type Service struct {
	db     *gorm.DB
	logger *log.Logger
}

func New(st *store.Store, logger *log.Logger) *Service {
	return &Service{
		db:     st.DB(),
		logger: logger.WithPrefix("clubs"),
	}
}

// Member returns the membership record for a (club, player) pair.
func (s *Service) Member(clubCode string, playerID uint64) (*engine.Membership, error) {
	member, err := store.Member(s.db, clubCode, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &engine.Membership{
		AutoApproval: member.AutoApproval,
		IsOwner:      member.IsOwner,
		IsManager:    member.IsManager,
		CreditLimit:  member.CreditLimit,
	}, nil
}

// OutstandingBuyins sums the player's buy-ins across the club's games
// that have not ended. Money still on a table counts against the
// member's credit.
func (s *Service) OutstandingBuyins(clubCode string, playerID uint64) (int64, error) {
	var total int64
	err := s.db.Model(&store.SeatAssignment{}).
		Joins("JOIN games ON games.id = seat_assignments.game_id").
		Where("games.club_code = ? AND games.status <> ? AND seat_assignments.player_id = ?",
			clubCode, store.GameEnded, playerID).
		Select("COALESCE(SUM(seat_assignments.buy_in), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
