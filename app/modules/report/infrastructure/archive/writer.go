package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
)

// ErrNotFound is returned when no archived report exists for a match.
var ErrNotFound = errors.New("archived report not found")

// Impl implements Writer using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewWriter creates a new archive writer.
func NewWriter(db bun.IDB) Writer {
	return &Impl{db: db}
}

// CreateSchema ensures the match_reports table exists.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*ArchivedReport)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create match_reports table: %w", err)
	}
	return nil
}

// Save stores the report, ignoring a row already archived for the match.
func (r *Impl) Save(ctx context.Context, report *reporttypes.MatchReport) error {
	row := &ArchivedReport{
		MatchID:      report.MatchID,
		Name:         report.Name,
		HostID:       report.HostID,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		ArrowsPerEnd: report.ArrowsPerEnd,
		NumEnds:      report.NumEnds,
		ArcherCount:  len(report.Archers),
		Report:       *report,
		ArchivedAt:   time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (match_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save report for match %s: %w", report.MatchID, err)
	}
	return nil
}

// GetByMatchID retrieves the archived report for a match.
func (r *Impl) GetByMatchID(ctx context.Context, matchID string) (*ArchivedReport, error) {
	row := new(ArchivedReport)
	err := r.db.NewSelect().
		Model(row).
		Where("match_id = ?", matchID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report for match %s: %w", matchID, err)
	}
	return row, nil
}
