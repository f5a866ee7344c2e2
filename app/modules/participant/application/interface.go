package participantservice

import (
	"context"
	"time"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// Outcome classifies the visible result of a confirm/reject call.
type Outcome string

const (
	// OutcomeWaiting means decisions are still outstanding for the end.
	OutcomeWaiting Outcome = "waiting"
	// OutcomeAccepted means every archer accepted and the match advanced to
	// the next end.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected means the end was rejected and reset for resubmission.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFinished means every archer accepted the final end.
	OutcomeFinished Outcome = "finished"
)

// DecisionResult is returned by ConfirmEnd and RejectEnd. Notices is
// populated only on the call that committed a reset, so exactly one caller
// dispatches resubmission prompts.
type DecisionResult struct {
	Outcome Outcome
	Match   *matchtypes.Match
	Notices []events.ResubmissionNotice
}

// SubmissionForm describes the archer a user scores for under the current
// rotation, with the arrow count their next submission must carry.
type SubmissionForm struct {
	TargetSessionID string
	TargetUserID    string
	TargetFirstName string
	TargetLastName  string
	ArrowsPerEnd    int
	End             int
}

// ArcherEndTotals carries one archer's arrows for an end under review plus
// their running score through that end.
type ArcherEndTotals struct {
	SessionID    string
	UserID       string
	FirstName    string
	LastName     string
	Arrows       []sessiontypes.Arrow
	EndTotal     int
	RunningTotal int
}

// EndTotals is the review sheet shown during the confirmation phase.
type EndTotals struct {
	End     int
	Archers []ArcherEndTotals
}

// Service coordinates participant actions over a match's lifecycle:
// joining, readiness, connection tracking, per-end scoring, and the final
// report. Every state transition is committed exactly once regardless of
// concurrent or replayed calls.
type Service interface {
	Join(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, error)
	Leave(ctx context.Context, matchID, userID string) error

	SetReady(ctx context.Context, matchID, userID string, ready bool) (*matchtypes.Match, error)
	SetConnected(ctx context.Context, matchID, userID string, connected bool, ttl time.Duration) (*matchtypes.Match, error)

	GetSubmissionForm(ctx context.Context, matchID, userID string) (*SubmissionForm, error)
	SubmitEndArrows(ctx context.Context, matchID, userID string, arrows []sessiontypes.Arrow) (*matchtypes.Match, error)
	GetEndTotals(ctx context.Context, matchID string) (*EndTotals, error)

	ConfirmEnd(ctx context.Context, matchID, userID string) (*DecisionResult, error)
	RejectEnd(ctx context.Context, matchID, userID string) (*DecisionResult, error)

	GetMatchReport(ctx context.Context, matchID string) (*reporttypes.MatchReport, error)
}
