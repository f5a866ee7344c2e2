package participantservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
	reportservice "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/application"
)

// GetMatchReport hands out the finished match's scoresheet exactly once.
// The first caller to claim the finished->reported gate gets the report and
// triggers its hand-off to the archive writer; every later caller gets
// ErrNoReport. A match that has not finished gets ErrInvalidPhase.
func (s *ParticipantService) GetMatchReport(ctx context.Context, matchID string) (*reporttypes.MatchReport, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CurrentPhase != matchtypes.PhaseFinished {
		if match.CurrentPhase == matchtypes.PhaseReported ||
			match.CurrentPhase == matchtypes.PhaseSaved ||
			match.CurrentPhase == matchtypes.PhaseSaveError {
			return nil, ErrNoReport
		}
		return nil, phaseError("get report", match.CurrentPhase)
	}

	// Build before claiming; the claim is the point of no return and the
	// reads feeding the report must already have succeeded.
	sessions, err := s.SessionDB.GetMany(ctx, match.Participants)
	if err != nil {
		return nil, err
	}
	report := reportservice.BuildReport(match, sessions, time.Now().UTC())

	claimed, observed, err := s.MatchDB.ClaimReport(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.recordTransition("claim_report", claimed)
	if !claimed {
		s.logger.DebugContext(ctx, "report already claimed",
			slog.String("match_id", matchID),
			slog.String("phase", string(observed)))
		return nil, ErrNoReport
	}

	s.logger.InfoContext(ctx, "match report claimed",
		slog.String("match_id", matchID),
		slog.Int("archers", len(report.Archers)))

	s.publishEvent(ctx, events.ReportReady, events.ReportReadyPayload{Report: *report})
	s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
		MatchID:  matchID,
		Current:  matchtypes.PhaseReported,
		Previous: matchtypes.PhaseFinished,
	})
	return report, nil
}
