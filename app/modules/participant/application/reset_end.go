package participantservice

import (
	"context"
	"log/slog"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// resetEnd rolls a rejected end back: every archer's sheet is trimmed to
// the previous end boundary and the rejected decisions are dropped, leaving
// the match in submit at the same end counter. Resubmission notices are
// captured from the snapshot taken before the trim, and only the caller
// whose reset actually committed returns them, so each submitter is
// prompted once.
func (s *ParticipantService) resetEnd(ctx context.Context, match *matchtypes.Match, archers []*sessiontypes.Session) ([]events.ResubmissionNotice, error) {
	notices := make([]events.ResubmissionNotice, 0, len(match.SubmissionMap))
	for recipientUserID, targetSessionID := range match.SubmissionMap {
		target, ok := findSession(archers, targetSessionID)
		if !ok {
			continue
		}
		notices = append(notices, events.ResubmissionNotice{
			RecipientUserID: recipientUserID,
			TargetUserID:    target.UserID,
			TargetFirstName: target.FirstName,
			TargetLastName:  target.LastName,
			Arrows:          target.EndWindow(match.CurrentEnd, match.ArrowsPerEnd),
			End:             match.CurrentEnd,
		})
	}

	archerSessionIDs := make([]string, len(archers))
	for i, archer := range archers {
		archerSessionIDs[i] = archer.ID
	}
	keep := (match.CurrentEnd - 1) * match.ArrowsPerEnd

	committed, err := s.MatchDB.ResetEnd(ctx, match.ID, archerSessionIDs, keep)
	if err != nil {
		return nil, err
	}
	s.recordTransition("reset_end", committed)
	if !committed {
		return nil, nil
	}

	s.logger.InfoContext(ctx, "end reset for resubmission",
		slog.String("match_id", match.ID),
		slog.Int("end", match.CurrentEnd))

	s.publishEvent(ctx, events.EndReset, events.EndResetPayload{
		MatchID: match.ID,
		End:     match.CurrentEnd,
		Notices: notices,
	})
	s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
		MatchID:  match.ID,
		Current:  matchtypes.PhaseSubmit,
		Previous: matchtypes.PhaseConfirmation,
	})
	return notices, nil
}
