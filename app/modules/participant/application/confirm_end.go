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

// ConfirmEnd records the user's acceptance of the end under review.
func (s *ParticipantService) ConfirmEnd(ctx context.Context, matchID, userID string) (*DecisionResult, error) {
	return s.decideEnd(ctx, matchID, userID, true)
}

// RejectEnd records the user's rejection of the end under review.
func (s *ParticipantService) RejectEnd(ctx context.Context, matchID, userID string) (*DecisionResult, error) {
	return s.decideEnd(ctx, matchID, userID, false)
}

// decideEnd appends one archer's confirm/reject and, when the decision is
// the last one outstanding, settles the end: all accepted advances the end
// counter (or finishes the match on the final end), any rejection rolls the
// end back for resubmission. Each settlement commits exactly once; callers
// that lose the settle race still get the outcome they observed.
func (s *ParticipantService) decideEnd(ctx context.Context, matchID, userID string, accepted bool) (*DecisionResult, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CurrentPhase != matchtypes.PhaseConfirmation {
		return nil, phaseError("decide end", match.CurrentPhase)
	}

	session, err := s.loadSession(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsArcher() {
		return nil, ErrNotAnArcher
	}

	// One decision per archer per end: the sequence must still be one short
	// of the current end.
	snapshot, err := s.SessionDB.AppendDecision(ctx, redisdocs.SessionKey(matchID, userID), accepted, match.CurrentEnd-1, match.Participants)
	if err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrSequenceChanged):
			return nil, ErrAlreadyDecided
		case errors.Is(err, sessiondb.ErrSessionNotFound):
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.publishEvent(ctx, events.EndDecided, events.EndDecidedPayload{
		MatchID:  matchID,
		End:      match.CurrentEnd,
		UserID:   userID,
		Accepted: accepted,
	})

	archers := archersOf(snapshot)
	allDecided, anyRejected := tallyDecisions(archers, match.CurrentEnd)

	result := &DecisionResult{Outcome: OutcomeWaiting}
	switch {
	case !allDecided:
		// Nothing to settle yet.
	case anyRejected:
		notices, err := s.resetEnd(ctx, match, archers)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeRejected
		result.Notices = notices
	case match.CurrentEnd == match.NumEnds:
		committed, err := s.MatchDB.FinishMatch(ctx, matchID, match.CurrentEnd)
		if err != nil {
			return nil, err
		}
		s.recordTransition("finish", committed)
		if committed {
			s.logger.InfoContext(ctx, "match finished",
				slog.String("match_id", matchID),
				slog.Int("ends", match.NumEnds))
			s.publishEvent(ctx, events.MatchFinished, events.MatchFinishedPayload{MatchID: matchID})
			s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
				MatchID:  matchID,
				Current:  matchtypes.PhaseFinished,
				Previous: matchtypes.PhaseConfirmation,
			})
		}
		result.Outcome = OutcomeFinished
	default:
		committed, err := s.MatchDB.AdvanceEnd(ctx, matchID, match.CurrentEnd)
		if err != nil {
			return nil, err
		}
		s.recordTransition("advance_end", committed)
		if committed {
			s.publishEvent(ctx, events.EndAdvanced, events.EndAdvancedPayload{
				MatchID: matchID,
				End:     match.CurrentEnd + 1,
			})
			s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
				MatchID:  matchID,
				Current:  matchtypes.PhaseSubmit,
				Previous: matchtypes.PhaseConfirmation,
			})
		}
		result.Outcome = OutcomeAccepted
	}

	result.Match, err = s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// tallyDecisions inspects the current end's decisions across a snapshot.
func tallyDecisions(archers []*sessiontypes.Session, end int) (allDecided, anyRejected bool) {
	if len(archers) == 0 {
		return false, false
	}
	allDecided = true
	for _, archer := range archers {
		if !archer.DecidedEnd(end) {
			allDecided = false
			continue
		}
		if !archer.Scoring.EndsConfirmed[end-1] {
			anyRejected = true
		}
	}
	return allDecided, anyRejected
}
