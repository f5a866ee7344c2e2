// Package reportservice assembles the final scoresheet for a finished
// match. The coordinator builds the value; the archive writer persists it.
package reportservice

import (
	"time"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// BuildReport assembles the scoresheet from the match document and its
// participant sessions. Judge sessions carry no scores and get no line;
// archers keep their join order. Equipment resolves per archer, per-user
// override first.
func BuildReport(match *matchtypes.Match, sessions []*sessiontypes.Session, finishedAt time.Time) *reporttypes.MatchReport {
	report := &reporttypes.MatchReport{
		MatchID:      match.ID,
		Name:         match.Name,
		EndLabel:     match.EndLabel,
		HostID:       match.HostID,
		StartedAt:    match.StartedAt,
		FinishedAt:   finishedAt,
		ArrowsPerEnd: match.ArrowsPerEnd,
		NumEnds:      match.NumEnds,
	}
	for _, session := range sessions {
		if session == nil || !session.IsArcher() || session.Scoring == nil {
			continue
		}
		sheet := reporttypes.ArcherSheet{
			UserID:      session.UserID,
			FirstName:   session.FirstName,
			LastName:    session.LastName,
			Affiliation: session.Affiliation,
			Equipment:   match.EquipmentFor(session.UserID),
			Scores:      session.Scoring.Scores,
			ArrowCount:  len(session.Scoring.Scores),
		}
		for _, entry := range session.Scoring.Scores {
			sheet.Total += entry.Score.Points()
		}
		report.Archers = append(report.Archers, sheet)
	}
	return report
}
