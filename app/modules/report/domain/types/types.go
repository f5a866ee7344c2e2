// types.go
package reporttypes

import (
	"time"

	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// ArcherSheet is one archer's line on the finished-match scoresheet.
type ArcherSheet struct {
	UserID      string                    `json:"user_id"`
	FirstName   string                    `json:"first_name"`
	LastName    string                    `json:"last_name"`
	Affiliation string                    `json:"affiliation"`
	Equipment   string                    `json:"equipment"`
	Scores      []sessiontypes.ScoreEntry `json:"scores"`
	ArrowCount  int                       `json:"arrow_count"`
	Total       int                       `json:"total"`
}

// MatchReport is the assembled scoresheet for a finished match. This core
// produces the value; durably writing it is the archive collaborator's job.
type MatchReport struct {
	MatchID      string        `json:"match_id"`
	Name         string        `json:"name"`
	EndLabel     string        `json:"end_label,omitempty"`
	HostID       string        `json:"host_id"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	FinishedAt   time.Time     `json:"finished_at"`
	ArrowsPerEnd int           `json:"arrows_per_end"`
	NumEnds      int           `json:"num_ends"`
	Archers      []ArcherSheet `json:"archers"`
}
