package archive

import (
	"context"

	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
)

// Writer is the archive's storage contract.
type Writer interface {
	// Save stores the report. Re-saving the same match is a no-op, so a
	// redelivered hand-off cannot duplicate rows.
	Save(ctx context.Context, report *reporttypes.MatchReport) error
	GetByMatchID(ctx context.Context, matchID string) (*ArchivedReport, error)
}
