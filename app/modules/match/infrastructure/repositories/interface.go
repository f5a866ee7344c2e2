package matchdb

import (
	"context"
	"time"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
)

// MatchDB is the match registry's storage contract.
//
// The guarded methods (InitializeMatch, BeginConfirmation, AdvanceEnd,
// FinishMatch, ResetEnd, ClaimReport) are one-time transitions: each commits
// conditionally against an optimistic watch on the match document and
// reports false, with no error, when a concurrent caller won the race or
// the precondition no longer holds.
type MatchDB interface {
	Create(ctx context.Context, match *matchtypes.Match) error
	Get(ctx context.Context, matchID string) (*matchtypes.Match, error)
	// Delete removes every session in the participant index, then the
	// match document itself.
	Delete(ctx context.Context, matchID string) error

	GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error)
	// SetPhase records next as the current phase and the old current as
	// previous, atomically. Setting the phase it already has is a no-op.
	SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error

	ParticipantIDs(ctx context.Context, matchID string) ([]string, error)
	ParticipantCount(ctx context.Context, matchID string) (int, error)

	InitializeMatch(ctx context.Context, matchID string, startedAt time.Time, submissionMap map[string]string) (bool, error)
	BeginConfirmation(ctx context.Context, matchID string, end int) (bool, error)
	AdvanceEnd(ctx context.Context, matchID string, from int) (bool, error)
	FinishMatch(ctx context.Context, matchID string, atEnd int) (bool, error)
	// ResetEnd trims every archer session back to keepScores arrows, drops
	// their latest confirmation entry, and returns the phase to submit
	// without touching the end counter.
	ResetEnd(ctx context.Context, matchID string, archerSessionIDs []string, keepScores int) (bool, error)
	// ClaimReport performs the finished->reported gate. The returned phase
	// is the one observed under the watch, for callers that need to tell
	// "already reported" apart from "not finished yet".
	ClaimReport(ctx context.Context, matchID string) (bool, matchtypes.Phase, error)
}
