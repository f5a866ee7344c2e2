package participantservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// Join creates a session for the user on the match. Joining is legal only
// while the match is gathering participants; filling the last seat flips
// the match to full.
func (s *ParticipantService) Join(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	switch match.CurrentPhase {
	case matchtypes.PhaseOpen:
	case matchtypes.PhaseFull:
		return nil, ErrMatchFull
	default:
		return nil, phaseError("join", match.CurrentPhase)
	}

	session, count, err := s.SessionDB.Create(ctx, matchID, input)
	if err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrMatchNotFound):
			return nil, ErrMatchNotFound
		case errors.Is(err, sessiondb.ErrMatchFull):
			return nil, ErrMatchFull
		case errors.Is(err, sessiondb.ErrDuplicateSession):
			return nil, ErrDuplicateSession
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant joined",
		slog.String("match_id", matchID),
		slog.String("user_id", input.UserID),
		slog.String("role", string(input.Role)),
		slog.Int("count", count))

	if count == match.MaxParticipants {
		if err := s.setPhase(ctx, matchID, matchtypes.PhaseFull, match.CurrentPhase); err != nil {
			return nil, err
		}
	}
	s.publishEvent(ctx, events.ParticipantJoined, events.ParticipantChangedPayload{
		MatchID: matchID,
		UserID:  input.UserID,
		Role:    string(input.Role),
		Count:   count,
	})
	return session, nil
}

// Leave removes the user's session before the match starts. Once scoring is
// underway a participant disconnects instead, and expiry reconciliation
// removes them.
func (s *ParticipantService) Leave(ctx context.Context, matchID, userID string) error {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.CurrentPhase != matchtypes.PhaseOpen && match.CurrentPhase != matchtypes.PhaseFull {
		return phaseError("leave", match.CurrentPhase)
	}

	count, err := s.SessionDB.Delete(ctx, redisdocs.SessionKey(matchID, userID))
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	s.logger.InfoContext(ctx, "participant left",
		slog.String("match_id", matchID),
		slog.String("user_id", userID),
		slog.Int("count", count))

	if match.CurrentPhase == matchtypes.PhaseFull {
		if err := s.setPhase(ctx, matchID, matchtypes.PhaseOpen, match.CurrentPhase); err != nil {
			return err
		}
	}
	s.publishEvent(ctx, events.ParticipantLeft, events.ParticipantChangedPayload{
		MatchID: matchID,
		UserID:  userID,
		Count:   count,
	})
	return nil
}
