package participantservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// SetReady flips the user's ready flag. When the flag lands on a full match
// and every participant is ready and connected, it starts the match: the
// submission rotation is fixed from the archers' join order and the phase
// moves to submit. The start commits once no matter how many ready calls
// race over it.
func (s *ParticipantService) SetReady(ctx context.Context, matchID, userID string, ready bool) (*matchtypes.Match, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CurrentPhase != matchtypes.PhaseOpen && match.CurrentPhase != matchtypes.PhaseFull {
		return nil, phaseError("set ready", match.CurrentPhase)
	}

	// The snapshot includes the caller's own session so the start decision
	// sees the flag it just wrote.
	snapshot, err := s.SessionDB.SetReady(ctx, redisdocs.SessionKey(matchID, userID), ready, match.Participants)
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if ready && match.CurrentPhase == matchtypes.PhaseFull && allReadyAndConnected(snapshot) {
		if err := s.tryInitialize(ctx, match, snapshot); err != nil {
			return nil, err
		}
	}
	return s.loadMatch(ctx, matchID)
}

// tryInitialize attempts the full->submit start. Losing the race to a
// concurrent caller is not an error; the winner already published.
func (s *ParticipantService) tryInitialize(ctx context.Context, match *matchtypes.Match, snapshot []*sessiontypes.Session) error {
	assignments := submissionAssignments(archersOf(snapshot))
	startedAt := time.Now().UTC()

	committed, err := s.MatchDB.InitializeMatch(ctx, match.ID, startedAt, assignments)
	if err != nil {
		return err
	}
	s.recordTransition("initialize", committed)
	if !committed {
		return nil
	}

	s.logger.InfoContext(ctx, "match started",
		slog.String("match_id", match.ID),
		slog.Int("archers", len(assignments)))

	s.publishEvent(ctx, events.MatchStarted, events.MatchStartedPayload{
		MatchID:       match.ID,
		StartedAt:     startedAt.Format(time.RFC3339),
		SubmissionMap: assignments,
	})
	s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
		MatchID:  match.ID,
		Current:  matchtypes.PhaseSubmit,
		Previous: matchtypes.PhaseFull,
	})
	return nil
}

func allReadyAndConnected(sessions []*sessiontypes.Session) bool {
	for _, session := range sessions {
		if session == nil || !session.Ready || !session.Connected {
			return false
		}
	}
	return len(sessions) > 0
}
