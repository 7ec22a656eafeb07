package engine

import "github.com/clubpoker/tablekeeper/internal/store"

// requireHostAuthority checks that the caller is the game host or a
// club owner/manager. Checked before any write.
func (e *Engine) requireHostAuthority(game *store.Game, playerID uint64) error {
	if playerID == game.HostPlayerID {
		return nil
	}
	if game.ClubCode != "" && e.clubs != nil {
		member, err := e.clubs.Member(game.ClubCode, playerID)
		if err == nil && (member.IsOwner || member.IsManager) {
			return nil
		}
	}
	return ErrNotAuthorized
}
