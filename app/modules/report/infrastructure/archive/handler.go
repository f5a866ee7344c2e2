package archive

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
)

// PhaseRecorder is the slice of the match service the archiver needs to
// record the write-back outcome.
type PhaseRecorder interface {
	SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error
}

// Archiver consumes report hand-offs, writes them durably, and records
// saved or save-error on the match.
type Archiver struct {
	Writer   Writer
	Matches  PhaseRecorder
	EventBus message.Publisher
	Logger   *slog.Logger
}

// HandleReportReady processes one hand-off. A malformed payload is dropped;
// a failed write is recorded as save-error on the match rather than
// retried, because the report itself cannot be rebuilt from the bus.
func (a *Archiver) HandleReportReady(msg *message.Message) error {
	ctx := msg.Context()

	var payload events.ReportReadyPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		a.Logger.ErrorContext(ctx, "dropping malformed report payload",
			slog.String("message_id", msg.UUID),
			slog.Any("error", err))
		return nil
	}
	matchID := payload.Report.MatchID

	saveErr := a.Writer.Save(ctx, &payload.Report)
	outcome := matchtypes.PhaseSaved
	if saveErr != nil {
		outcome = matchtypes.PhaseSaveError
		a.Logger.ErrorContext(ctx, "failed to archive report",
			slog.String("match_id", matchID),
			slog.Any("error", saveErr))
	} else {
		a.Logger.InfoContext(ctx, "report archived",
			slog.String("match_id", matchID),
			slog.Int("archers", len(payload.Report.Archers)))
	}

	if err := a.Matches.SetPhase(ctx, matchID, outcome); err != nil {
		a.Logger.ErrorContext(ctx, "failed to record archive outcome",
			slog.String("match_id", matchID),
			slog.String("outcome", string(outcome)),
			slog.Any("error", err))
	}

	a.publishArchived(ctx, matchID, saveErr)
	return nil
}

func (a *Archiver) publishArchived(ctx context.Context, matchID string, saveErr error) {
	if a.EventBus == nil {
		return
	}
	payload := events.ReportArchivedPayload{MatchID: matchID, Saved: saveErr == nil}
	if saveErr != nil {
		payload.Error = saveErr.Error()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		a.Logger.ErrorContext(ctx, "failed to marshal archive event",
			slog.Any("error", err))
		return
	}
	if err := a.EventBus.Publish(events.ReportArchived, message.NewMessage(watermill.NewUUID(), payloadBytes)); err != nil {
		a.Logger.ErrorContext(ctx, "failed to publish archive event",
			slog.String("match_id", matchID),
			slog.Any("error", err))
	}
}
