package sessiondb

import (
	"context"
	"time"

	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// SessionDB is the session registry's storage contract.
//
// The mutators that take peerSessionIDs return a snapshot of those sessions
// taken in the same round trip as the write, so the caller's decision logic
// sees its own change plus a consistent view of everyone else.
type SessionDB interface {
	// Create stores a session and appends it to the match's participant
	// index, enforcing match existence, capacity, and one-session-per-user.
	// Returns the session and the participant count after the join.
	Create(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error)

	Get(ctx context.Context, sessionID string) (*sessiontypes.Session, error)
	GetMany(ctx context.Context, sessionIDs []string) ([]*sessiontypes.Session, error)

	// Delete removes the session document and its index entry, returning
	// the participant count after the removal.
	Delete(ctx context.Context, sessionID string) (int, error)

	SetReady(ctx context.Context, sessionID string, ready bool, peerSessionIDs []string) ([]*sessiontypes.Session, error)
	// SetConnected flips the connected flag; ttl > 0 arms the store's key
	// expiry (disconnect), ttl == 0 clears it (reconnect).
	SetConnected(ctx context.Context, sessionID string, connected bool, ttl time.Duration, peerSessionIDs []string) ([]*sessiontypes.Session, error)

	// AppendScores appends this end's tagged arrows to the target archer's
	// sequence, but only if the sequence still holds exactly priorCount
	// entries; a replayed submission fails with ErrSequenceChanged.
	AppendScores(ctx context.Context, targetSessionID string, entries []sessiontypes.ScoreEntry, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error)
	// AppendDecision appends a confirm/reject under the same length guard
	// over the confirmation sequence.
	AppendDecision(ctx context.Context, sessionID string, accepted bool, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error)

	// RemoveExpired mirrors Delete for a session whose key already expired:
	// it asserts the document is genuinely gone (a live document means the
	// session was recreated and the notification is stale) and removes the
	// index entry. Returns the participant count after the removal.
	RemoveExpired(ctx context.Context, sessionID string) (int, error)
}
