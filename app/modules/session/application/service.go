package sessionservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/app/shared/observability"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// ErrInvalidRole indicates a role outside {archer, judge}.
var ErrInvalidRole = errors.New("invalid session role")

// SessionService handles session registry logic: guarded creation, deletion
// with index upkeep, and reconciliation against store-signaled expiry.
type SessionService struct {
	SessionDB sessiondb.SessionDB
	MatchDB   matchdb.MatchDB
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions sessiondb.SessionDB, matches matchdb.MatchDB, logger *slog.Logger, metrics *observability.Metrics) Service {
	return &SessionService{
		SessionDB: sessions,
		MatchDB:   matches,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateSession stores a session for a user joining a match. Capacity and
// double-booking are enforced under the store watch in the repository.
func (s *SessionService) CreateSession(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error) {
	if input.Role != sessiontypes.RoleArcher && input.Role != sessiontypes.RoleJudge {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidRole, input.Role)
	}
	if input.UserID == "" {
		return nil, 0, fmt.Errorf("%w: empty user id", sessiondb.ErrSessionNotFound)
	}
	return s.SessionDB.Create(ctx, matchID, input)
}

// GetSession fetches one session document.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*sessiontypes.Session, error) {
	return s.SessionDB.Get(ctx, sessionID)
}

// DeleteSession removes a session and its index entry. Removal can only
// ever relax fullness, so a full match drops back to open here.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	remaining, err := s.SessionDB.Delete(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.reopenIfFull(ctx, sessionID)
	return remaining, nil
}

// SyncExpired reconciles one expired session key. It asserts the document
// is genuinely gone, then removes the index entries the way an ordinary
// delete would. No pause/resume logic applies here because the user is
// simply no longer present.
func (s *SessionService) SyncExpired(ctx context.Context, sessionID string) error {
	_, err := s.SessionDB.RemoveExpired(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionRecreated) {
			s.metrics.StaleExpiryEvents.Inc()
			s.logger.WarnContext(ctx, "stale expiry notification, session recreated",
				observability.String("session_id", sessionID))
		}
		return err
	}
	s.reopenIfFull(ctx, sessionID)
	s.metrics.ExpirySyncs.Inc()
	s.logger.InfoContext(ctx, "expired session reconciled",
		observability.String("session_id", sessionID))
	return nil
}

// reopenIfFull re-evaluates the open/full pair after a removal.
func (s *SessionService) reopenIfFull(ctx context.Context, sessionID string) {
	matchID := matchIDOf(sessionID)
	if matchID == "" {
		return
	}
	pair, err := s.MatchDB.GetPhase(ctx, matchID)
	if err != nil {
		// The whole match may have been cascade-deleted; nothing to relax.
		if !errors.Is(err, matchdb.ErrMatchNotFound) {
			s.logger.ErrorContext(ctx, "failed to re-evaluate fullness",
				observability.String("match_id", matchID),
				observability.Error(err))
		}
		return
	}
	if pair.Current != matchtypes.PhaseFull {
		return
	}
	if err := s.MatchDB.SetPhase(ctx, matchID, matchtypes.PhaseOpen); err != nil {
		s.logger.ErrorContext(ctx, "failed to reopen match",
			observability.String("match_id", matchID),
			observability.Error(err))
	}
}

func matchIDOf(sessionID string) string {
	matchID, _, err := redisdocs.SplitSessionKey(sessionID)
	if err != nil {
		return ""
	}
	return matchID
}
