// Package participantservice is the coordinator: it drives a match through
// its lifecycle by composing the match and session registries, committing
// every one-time transition exactly once under concurrent callers.
package participantservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/app/shared/observability"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// DefaultDisconnectTTL is how long a disconnected session survives before
// the store expires it, unless configuration overrides it.
const DefaultDisconnectTTL = 3 * time.Minute

// ParticipantService implements Service.
type ParticipantService struct {
	MatchDB       matchdb.MatchDB
	SessionDB     sessiondb.SessionDB
	EventBus      message.Publisher
	logger        *slog.Logger
	metrics       *observability.Metrics
	disconnectTTL time.Duration
}

// NewParticipantService creates a new ParticipantService. A non-positive
// disconnectTTL falls back to DefaultDisconnectTTL.
func NewParticipantService(matches matchdb.MatchDB, sessions sessiondb.SessionDB, eventBus message.Publisher, logger *slog.Logger, metrics *observability.Metrics, disconnectTTL time.Duration) Service {
	if disconnectTTL <= 0 {
		disconnectTTL = DefaultDisconnectTTL
	}
	return &ParticipantService{
		MatchDB:       matches,
		SessionDB:     sessions,
		EventBus:      eventBus,
		logger:        logger,
		metrics:       metrics,
		disconnectTTL: disconnectTTL,
	}
}

// loadMatch fetches the match document, folding the storage sentinel into
// the coordinator's taxonomy.
func (s *ParticipantService) loadMatch(ctx context.Context, matchID string) (*matchtypes.Match, error) {
	match, err := s.MatchDB.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, matchdb.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// loadSession fetches the user's session on the match.
func (s *ParticipantService) loadSession(ctx context.Context, matchID, userID string) (*sessiontypes.Session, error) {
	session, err := s.SessionDB.Get(ctx, redisdocs.SessionKey(matchID, userID))
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// setPhase commits a phase movement and broadcasts it.
func (s *ParticipantService) setPhase(ctx context.Context, matchID string, next, previous matchtypes.Phase) error {
	if err := s.MatchDB.SetPhase(ctx, matchID, next); err != nil {
		return err
	}
	s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
		MatchID:  matchID,
		Current:  next,
		Previous: previous,
	})
	return nil
}

// recordTransition bumps the committed/discarded counter for a guarded
// transition.
func (s *ParticipantService) recordTransition(name string, committed bool) {
	if s.metrics == nil {
		return
	}
	if committed {
		s.metrics.TransitionsCommitted.WithLabelValues(name).Inc()
	} else {
		s.metrics.ConflictsDiscarded.WithLabelValues(name).Inc()
	}
}

// archersOf filters a participant snapshot down to scoring sessions,
// preserving order.
func archersOf(sessions []*sessiontypes.Session) []*sessiontypes.Session {
	archers := make([]*sessiontypes.Session, 0, len(sessions))
	for _, session := range sessions {
		if session != nil && session.IsArcher() {
			archers = append(archers, session)
		}
	}
	return archers
}

// publishEvent broadcasts a payload; delivery failures are logged, never
// surfaced, because the state transition already committed.
func (s *ParticipantService) publishEvent(ctx context.Context, topic string, payload any) {
	if s.EventBus == nil {
		return
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal event payload",
			slog.String("topic", topic),
			slog.Any("error", err))
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payloadBytes)
	if err := s.EventBus.Publish(topic, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
}

// phaseError wraps ErrInvalidPhase with the phase that blocked the call.
func phaseError(op string, phase matchtypes.Phase) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidPhase, op, phase)
}
