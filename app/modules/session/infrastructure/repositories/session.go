package sessiondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

var (
	// ErrMatchNotFound indicates the target match document does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrMatchFull indicates the match is at max_participants.
	ErrMatchFull = errors.New("match is full")

	// ErrDuplicateSession indicates the user already has a session on this
	// match.
	ErrDuplicateSession = errors.New("session already exists for user")

	// ErrSessionNotFound indicates the session document does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRecreated indicates an expiry notification arrived for a
	// key that exists again; the notification is stale and must be ignored.
	ErrSessionRecreated = errors.New("session recreated since expiry")

	// ErrSequenceChanged indicates a guarded append found the sequence at a
	// different length than the caller observed; a replay or stale caller.
	ErrSequenceChanged = errors.New("sequence changed since read")
)

const (
	pathReady        = "$.ready"
	pathConnected    = "$.connected"
	pathScores       = "$.scoring.scores"
	pathDecisions    = "$.scoring.ends_confirmed"
	pathParticipants = "$.participants"
)

// SessionDBImpl is the Redis-backed session registry.
type SessionDBImpl struct {
	Store  *redisdocs.Store
	Logger *slog.Logger
}

// Create stores the session document and appends it to the match's
// participant index under one optimistic watch, so capacity and duplicate
// checks hold at commit time.
func (db *SessionDBImpl) Create(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error) {
	matchKey := redisdocs.MatchKey(matchID)
	sessionKey := redisdocs.SessionKey(matchID, input.UserID)

	session := &sessiontypes.Session{
		ID:          sessionKey,
		MatchID:     matchID,
		UserID:      input.UserID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Affiliation: input.Affiliation,
		Role:        input.Role,
	}
	if input.Role == sessiontypes.RoleArcher {
		session.Scoring = &sessiontypes.Scoring{
			Scores:        []sessiontypes.ScoreEntry{},
			EndsConfirmed: []bool{},
		}
	}

	count := 0
	err := db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, matchKey)
		if err != nil {
			if errors.Is(err, redisdocs.ErrNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if len(match.Participants) >= match.MaxParticipants {
			return ErrMatchFull
		}
		exists, err := tx.Exists(ctx, sessionKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateSession
		}
		count = len(match.Participants) + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redisdocs.SetDoc(ctx, pipe, sessionKey, session); err != nil {
				return err
			}
			return redisdocs.ArrAppend(ctx, pipe, matchKey, pathParticipants, sessionKey)
		})
		return err
	}, matchKey)
	if err != nil {
		return nil, 0, err
	}

	db.Logger.InfoContext(ctx, "session created",
		slog.String("session_id", sessionKey),
		slog.String("role", string(input.Role)))
	return session, count, nil
}

// Get fetches one session document.
func (db *SessionDBImpl) Get(ctx context.Context, sessionID string) (*sessiontypes.Session, error) {
	session, err := redisdocs.GetDoc[sessiontypes.Session](ctx, db.Store.Client(), sessionID)
	if err != nil {
		if errors.Is(err, redisdocs.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return session, nil
}

// GetMany resolves session ids to documents in one pipelined read.
func (db *SessionDBImpl) GetMany(ctx context.Context, sessionIDs []string) ([]*sessiontypes.Session, error) {
	sessions, err := redisdocs.GetDocs[sessiontypes.Session](ctx, db.Store.Client(), sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes the document and its index entry.
func (db *SessionDBImpl) Delete(ctx context.Context, sessionID string) (int, error) {
	matchID, _, err := redisdocs.SplitSessionKey(sessionID)
	if err != nil {
		return 0, err
	}
	matchKey := redisdocs.MatchKey(matchID)

	remaining := 0
	err = db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, matchKey)
		if err != nil {
			if errors.Is(err, redisdocs.ErrNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		kept, found := removeID(match.Participants, sessionID)
		if !found {
			return ErrSessionNotFound
		}
		remaining = len(kept)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redisdocs.SetPath(ctx, pipe, matchKey, pathParticipants, kept); err != nil {
				return err
			}
			pipe.Del(ctx, sessionID)
			return nil
		})
		return err
	}, matchKey)
	if err != nil {
		return 0, err
	}

	db.Logger.InfoContext(ctx, "session deleted", slog.String("session_id", sessionID))
	return remaining, nil
}

// SetReady writes the ready flag and snapshots the peers in one batch.
func (db *SessionDBImpl) SetReady(ctx context.Context, sessionID string, ready bool, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	if err := db.assertExists(ctx, sessionID); err != nil {
		return nil, err
	}
	sessions, err := redisdocs.SetPathAndGetDocs[sessiontypes.Session](ctx, db.Store.Client(), sessionID, pathReady, ready, peerSessionIDs)
	if err != nil {
		return nil, fmt.Errorf("set ready on %s: %w", sessionID, err)
	}
	return sessions, nil
}

// SetConnected writes the connected flag, arms or clears the key expiry,
// and snapshots the peers, all in one batch.
func (db *SessionDBImpl) SetConnected(ctx context.Context, sessionID string, connected bool, ttl time.Duration, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	if err := db.assertExists(ctx, sessionID); err != nil {
		return nil, err
	}
	b, err := json.Marshal(connected)
	if err != nil {
		return nil, err
	}
	cmds := make([]*redis.JSONCmd, len(peerSessionIDs))
	if _, err := db.Store.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.JSONSet(ctx, sessionID, pathConnected, string(b))
		if ttl > 0 {
			pipe.Expire(ctx, sessionID, ttl)
		} else {
			pipe.Persist(ctx, sessionID)
		}
		for i, k := range peerSessionIDs {
			cmds[i] = pipe.JSONGet(ctx, k)
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("set connected on %s: %w", sessionID, err)
	}
	return redisdocs.CollectDocs[sessiontypes.Session](cmds)
}

// AppendScores appends tagged arrows to the target archer's sequence and
// snapshots the peers in the same batch. The append is guarded by an
// optimistic watch on the target session so a replayed submission cannot
// push the sequence past the end boundary.
func (db *SessionDBImpl) AppendScores(ctx context.Context, targetSessionID string, entries []sessiontypes.ScoreEntry, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	vals := make([]any, len(entries))
	for i, e := range entries {
		vals[i] = e
	}
	sessions, err := db.guardedAppend(ctx, targetSessionID, pathScores, vals, priorCount, peerSessionIDs)
	if err != nil {
		return nil, fmt.Errorf("append scores to %s: %w", targetSessionID, err)
	}
	return sessions, nil
}

// AppendDecision appends a confirm/reject decision under the same length
// guard over the confirmation sequence.
func (db *SessionDBImpl) AppendDecision(ctx context.Context, sessionID string, accepted bool, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	sessions, err := db.guardedAppend(ctx, sessionID, pathDecisions, []any{accepted}, priorCount, peerSessionIDs)
	if err != nil {
		return nil, fmt.Errorf("append decision to %s: %w", sessionID, err)
	}
	return sessions, nil
}

// guardedAppend appends to an array path only while its length is still
// priorCount, and reads the peer snapshot in the same commit.
func (db *SessionDBImpl) guardedAppend(ctx context.Context, sessionID, path string, vals []any, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	cmds := make([]*redis.JSONCmd, len(peerSessionIDs))
	err := db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		n, err := redisdocs.ArrLen(ctx, tx, sessionID, path)
		if err != nil {
			if errors.Is(err, redisdocs.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if n != priorCount {
			return ErrSequenceChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redisdocs.ArrAppend(ctx, pipe, sessionID, path, vals...); err != nil {
				return err
			}
			for i, k := range peerSessionIDs {
				cmds[i] = pipe.JSONGet(ctx, k)
			}
			return nil
		})
		return err
	}, sessionID)
	if err != nil {
		return nil, err
	}
	return redisdocs.CollectDocs[sessiontypes.Session](cmds)
}

// RemoveExpired drops the index entry for a session whose key expired.
func (db *SessionDBImpl) RemoveExpired(ctx context.Context, sessionID string) (int, error) {
	matchID, _, err := redisdocs.SplitSessionKey(sessionID)
	if err != nil {
		return 0, err
	}
	matchKey := redisdocs.MatchKey(matchID)

	remaining := 0
	err = db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, sessionID).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrSessionRecreated
		}
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, matchKey)
		if err != nil {
			if errors.Is(err, redisdocs.ErrNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		kept, found := removeID(match.Participants, sessionID)
		if !found {
			// Already unindexed; nothing to do.
			remaining = len(match.Participants)
			return nil
		}
		remaining = len(kept)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return redisdocs.SetPath(ctx, pipe, matchKey, pathParticipants, kept)
		})
		return err
	}, matchKey)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (db *SessionDBImpl) assertExists(ctx context.Context, sessionID string) error {
	exists, err := db.Store.Client().Exists(ctx, sessionID).Result()
	if err != nil {
		return fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func removeID(ids []string, id string) ([]string, bool) {
	kept := make([]string, 0, len(ids))
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	return kept, found
}
