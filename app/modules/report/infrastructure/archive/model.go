// Package archive persists finished-match reports to Postgres. It consumes
// the report hand-off from the coordinator and records the outcome back on
// the match document.
package archive

import (
	"time"

	"github.com/uptrace/bun"

	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
)

// ArchivedReport is the stored row for one finished match. The full
// scoresheet rides along as jsonb; the flat columns exist for querying.
type ArchivedReport struct {
	bun.BaseModel `bun:"table:match_reports,alias:mr"`

	ID           int64                   `bun:"id,pk,autoincrement"`
	MatchID      string                  `bun:"match_id,notnull,unique"`
	Name         string                  `bun:"name"`
	HostID       string                  `bun:"host_id,notnull"`
	StartedAt    *time.Time              `bun:"started_at"`
	FinishedAt   time.Time               `bun:"finished_at,notnull"`
	ArrowsPerEnd int                     `bun:"arrows_per_end,notnull"`
	NumEnds      int                     `bun:"num_ends,notnull"`
	ArcherCount  int                     `bun:"archer_count,notnull"`
	Report       reporttypes.MatchReport `bun:"report,type:jsonb,notnull"`
	ArchivedAt   time.Time               `bun:"archived_at,notnull,default:current_timestamp"`
}
