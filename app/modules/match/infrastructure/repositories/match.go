package matchdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

var (
	// ErrMatchNotFound indicates the match document does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrInvalidPhase indicates a phase value outside the defined set.
	ErrInvalidPhase = errors.New("invalid match phase")
)

// errCondFailed aborts a guarded transition whose precondition no longer
// holds. Never escapes this package.
var errCondFailed = errors.New("transition precondition failed")

const (
	pathPhase        = "$.current_state"
	pathPrevPhase    = "$.previous_state"
	pathCurrentEnd   = "$.current_end"
	pathStartedAt    = "$.started_at"
	pathSubmission   = "$.submission_map"
	pathParticipants = "$.participants"
	pathScores       = "$.scoring.scores"
	pathDecisions    = "$.scoring.ends_confirmed"
)

// MatchDBImpl is the Redis-backed match registry.
type MatchDBImpl struct {
	Store  *redisdocs.Store
	Logger *slog.Logger
}

// Create writes a fresh match document.
func (db *MatchDBImpl) Create(ctx context.Context, match *matchtypes.Match) error {
	if !match.CurrentPhase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, match.CurrentPhase)
	}
	if err := redisdocs.SetDoc(ctx, db.Store.Client(), redisdocs.MatchKey(match.ID), match); err != nil {
		return fmt.Errorf("create match %s: %w", match.ID, err)
	}
	db.Logger.InfoContext(ctx, "match created",
		slog.String("match_id", match.ID),
		slog.String("host_id", match.HostID))
	return nil
}

// Get fetches the whole match document.
func (db *MatchDBImpl) Get(ctx context.Context, matchID string) (*matchtypes.Match, error) {
	match, err := redisdocs.GetDoc[matchtypes.Match](ctx, db.Store.Client(), redisdocs.MatchKey(matchID))
	if err != nil {
		if errors.Is(err, redisdocs.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("get match %s: %w", matchID, err)
	}
	return match, nil
}

// Delete cascades over the participant index, then removes the match.
func (db *MatchDBImpl) Delete(ctx context.Context, matchID string) error {
	key := redisdocs.MatchKey(matchID)
	err := db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(match.Participants) > 0 {
				pipe.Del(ctx, match.Participants...)
			}
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redisdocs.ErrNotFound) {
		return ErrMatchNotFound
	}
	if err != nil {
		return fmt.Errorf("delete match %s: %w", matchID, err)
	}
	db.Logger.InfoContext(ctx, "match deleted", slog.String("match_id", matchID))
	return nil
}

// GetPhase reads the current and previous phases.
func (db *MatchDBImpl) GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error) {
	match, err := db.Get(ctx, matchID)
	if err != nil {
		return matchtypes.PhasePair{}, err
	}
	return matchtypes.PhasePair{Current: match.CurrentPhase, Previous: match.PreviousPhase}, nil
}

// SetPhase atomically records next and shifts the old current to previous.
func (db *MatchDBImpl) SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, next)
	}
	key := redisdocs.MatchKey(matchID)
	err := db.Store.RunWatch(ctx, func(tx *redis.Tx) error {
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, key)
		if err != nil {
			return err
		}
		if match.CurrentPhase == next {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return setPhasePair(ctx, pipe, key, next, match.CurrentPhase)
		})
		return err
	}, key)
	if errors.Is(err, redisdocs.ErrNotFound) {
		return ErrMatchNotFound
	}
	if err != nil {
		return fmt.Errorf("set phase %s on match %s: %w", next, matchID, err)
	}
	return nil
}

// ParticipantIDs returns the join-ordered session id index.
func (db *MatchDBImpl) ParticipantIDs(ctx context.Context, matchID string) ([]string, error) {
	match, err := db.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return match.Participants, nil
}

// ParticipantCount returns the participant index length.
func (db *MatchDBImpl) ParticipantCount(ctx context.Context, matchID string) (int, error) {
	n, err := redisdocs.ArrLen(ctx, db.Store.Client(), redisdocs.MatchKey(matchID), pathParticipants)
	if err != nil {
		if errors.Is(err, redisdocs.ErrNotFound) {
			return 0, ErrMatchNotFound
		}
		return 0, fmt.Errorf("participant count for match %s: %w", matchID, err)
	}
	return n, nil
}

// InitializeMatch performs the full->submit start transition exactly once:
// started_at, submission map, end counter to 1, phase to submit.
func (db *MatchDBImpl) InitializeMatch(ctx context.Context, matchID string, startedAt time.Time, submissionMap map[string]string) (bool, error) {
	return db.guarded(ctx, matchID, "initialize", func(match *matchtypes.Match) error {
		if match.CurrentPhase != matchtypes.PhaseFull {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		if err := redisdocs.SetPath(ctx, pipe, key, pathStartedAt, startedAt); err != nil {
			return err
		}
		if err := redisdocs.SetPath(ctx, pipe, key, pathSubmission, submissionMap); err != nil {
			return err
		}
		if err := redisdocs.SetPath(ctx, pipe, key, pathCurrentEnd, 1); err != nil {
			return err
		}
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseSubmit, matchtypes.PhaseFull)
	})
}

// BeginConfirmation moves submit->confirmation for the given end.
func (db *MatchDBImpl) BeginConfirmation(ctx context.Context, matchID string, end int) (bool, error) {
	return db.guarded(ctx, matchID, "begin confirmation", func(match *matchtypes.Match) error {
		if match.CurrentPhase != matchtypes.PhaseSubmit || match.CurrentEnd != end {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseConfirmation, matchtypes.PhaseSubmit)
	})
}

// AdvanceEnd moves confirmation->submit for the next end.
func (db *MatchDBImpl) AdvanceEnd(ctx context.Context, matchID string, from int) (bool, error) {
	return db.guarded(ctx, matchID, "advance end", func(match *matchtypes.Match) error {
		if match.CurrentPhase != matchtypes.PhaseConfirmation || match.CurrentEnd != from {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		if err := redisdocs.NumIncrBy(ctx, pipe, key, pathCurrentEnd, 1); err != nil {
			return err
		}
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseSubmit, matchtypes.PhaseConfirmation)
	})
}

// FinishMatch moves confirmation->finished on the final end.
func (db *MatchDBImpl) FinishMatch(ctx context.Context, matchID string, atEnd int) (bool, error) {
	return db.guarded(ctx, matchID, "finish", func(match *matchtypes.Match) error {
		if match.CurrentPhase != matchtypes.PhaseConfirmation || match.CurrentEnd != atEnd {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseFinished, matchtypes.PhaseConfirmation)
	})
}

// ResetEnd rolls the rejected end back in one conditional batch: every
// archer's scores trimmed to the start-of-end boundary, their latest
// decision dropped, phase back to submit, end counter untouched.
func (db *MatchDBImpl) ResetEnd(ctx context.Context, matchID string, archerSessionIDs []string, keepScores int) (bool, error) {
	return db.guarded(ctx, matchID, "reset end", func(match *matchtypes.Match) error {
		if match.CurrentPhase != matchtypes.PhaseConfirmation {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		for _, sid := range archerSessionIDs {
			if err := redisdocs.ArrTrimKeep(ctx, pipe, sid, pathScores, keepScores); err != nil {
				return err
			}
			if err := redisdocs.ArrPopLast(ctx, pipe, sid, pathDecisions); err != nil {
				return err
			}
		}
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseSubmit, matchtypes.PhaseConfirmation)
	})
}

// ClaimReport flips finished->reported for at most one caller.
func (db *MatchDBImpl) ClaimReport(ctx context.Context, matchID string) (bool, matchtypes.Phase, error) {
	var observed matchtypes.Phase
	committed, err := db.guarded(ctx, matchID, "claim report", func(match *matchtypes.Match) error {
		observed = match.CurrentPhase
		if match.CurrentPhase != matchtypes.PhaseFinished {
			return errCondFailed
		}
		return nil
	}, func(pipe redis.Pipeliner, key string) error {
		return setPhasePair(ctx, pipe, key, matchtypes.PhaseReported, matchtypes.PhaseFinished)
	})
	return committed, observed, err
}

// guarded is the one-winner commit discipline shared by all gated
// transitions: watch the match document, re-check the precondition from a
// fresh read, commit the batch conditionally. A failed precondition or a
// lost watch both report false without error.
func (db *MatchDBImpl) guarded(ctx context.Context, matchID, name string, check func(*matchtypes.Match) error, mutate func(redis.Pipeliner, string) error) (bool, error) {
	key := redisdocs.MatchKey(matchID)
	condFailed := false
	committed, err := db.Store.TryWatch(ctx, func(tx *redis.Tx) error {
		match, err := redisdocs.GetDoc[matchtypes.Match](ctx, tx, key)
		if err != nil {
			return err
		}
		if err := check(match); err != nil {
			condFailed = true
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return mutate(pipe, key)
		})
		return err
	}, key)
	if condFailed {
		return false, nil
	}
	if errors.Is(err, redisdocs.ErrNotFound) {
		return false, ErrMatchNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%s on match %s: %w", name, matchID, err)
	}
	if !committed {
		db.Logger.DebugContext(ctx, "guarded transition lost the race",
			slog.String("match_id", matchID),
			slog.String("transition", name))
	}
	return committed, nil
}

func setPhasePair(ctx context.Context, pipe redis.Pipeliner, key string, next, prev matchtypes.Phase) error {
	if err := redisdocs.SetPath(ctx, pipe, key, pathPhase, next); err != nil {
		return err
	}
	return redisdocs.SetPath(ctx, pipe, key, pathPrevPhase, prev)
}
