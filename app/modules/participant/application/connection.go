package participantservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// SetConnected tracks the user's transport link. A disconnect arms the
// session's store expiry and pauses a live match; a reconnect disarms the
// expiry and, once every participant is back, resumes the phase the pause
// interrupted. A non-positive ttl falls back to the configured disconnect
// deadline; a reconnect always clears it.
func (s *ParticipantService) SetConnected(ctx context.Context, matchID, userID string, connected bool, ttl time.Duration) (*matchtypes.Match, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.disconnectTTL
	}
	if connected {
		ttl = 0
	}
	snapshot, err := s.SessionDB.SetConnected(ctx, redisdocs.SessionKey(matchID, userID), connected, ttl, match.Participants)
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.logger.DebugContext(ctx, "connection changed",
		slog.String("match_id", matchID),
		slog.String("user_id", userID),
		slog.Bool("connected", connected))

	switch {
	case !connected && match.CurrentPhase.Live() && match.CurrentPhase != matchtypes.PhasePaused:
		if err := s.setPhase(ctx, matchID, matchtypes.PhasePaused, match.CurrentPhase); err != nil {
			return nil, err
		}
	case connected && match.CurrentPhase == matchtypes.PhasePaused && allConnected(snapshot):
		// Resume whatever phase the pause interrupted.
		if err := s.setPhase(ctx, matchID, match.PreviousPhase, matchtypes.PhasePaused); err != nil {
			return nil, err
		}
	}
	return s.loadMatch(ctx, matchID)
}

func allConnected(sessions []*sessiontypes.Session) bool {
	for _, session := range sessions {
		if session == nil || !session.Connected {
			return false
		}
	}
	return len(sessions) > 0
}
