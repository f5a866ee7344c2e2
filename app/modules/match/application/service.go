package matchservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
)

// ErrInvalidMatchInput indicates create details that cannot form a match.
var ErrInvalidMatchInput = errors.New("invalid match input")

// MatchService handles match-level registry logic.
type MatchService struct {
	MatchDB   matchdb.MatchDB
	SessionDB sessiondb.SessionDB
	EventBus  message.Publisher
	logger    *slog.Logger
}

// NewMatchService creates a new MatchService.
func NewMatchService(db matchdb.MatchDB, sessions sessiondb.SessionDB, eventBus message.Publisher, logger *slog.Logger) Service {
	return &MatchService{
		MatchDB:   db,
		SessionDB: sessions,
		EventBus:  eventBus,
		logger:    logger,
	}
}

// CreateMatch validates the host's details and writes the match document.
func (s *MatchService) CreateMatch(ctx context.Context, input matchtypes.CreateMatchInput) (*matchtypes.Match, error) {
	if input.HostID == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidMatchInput)
	}
	if input.MaxParticipants < 1 {
		return nil, fmt.Errorf("%w: max participants must be positive", ErrInvalidMatchInput)
	}
	if input.ArrowsPerEnd < 1 {
		return nil, fmt.Errorf("%w: arrows per end must be positive", ErrInvalidMatchInput)
	}
	if input.NumEnds < 1 {
		return nil, fmt.Errorf("%w: number of ends must be positive", ErrInvalidMatchInput)
	}

	match := &matchtypes.Match{
		ID:              uuid.NewString(),
		Name:            input.Name,
		EndLabel:        input.EndLabel,
		HostID:          input.HostID,
		CreatedAt:       time.Now().UTC(),
		MaxParticipants: input.MaxParticipants,
		ArrowsPerEnd:    input.ArrowsPerEnd,
		NumEnds:         input.NumEnds,
		CurrentEnd:      0,
		CurrentPhase:    matchtypes.PhaseOpen,
		PreviousPhase:   matchtypes.PhaseOpen,
		Participants:    []string{},
		EquipmentTag:    input.EquipmentTag,
		EquipmentTags:   input.EquipmentTags,
	}
	if err := s.MatchDB.Create(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// GetMatch fetches the match document.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*matchtypes.Match, error) {
	return s.MatchDB.Get(ctx, matchID)
}

// DeleteMatch cascades over the participant index and removes the match.
func (s *MatchService) DeleteMatch(ctx context.Context, matchID string) error {
	return s.MatchDB.Delete(ctx, matchID)
}

// GetPhase returns the current/previous phase pair.
func (s *MatchService) GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error) {
	return s.MatchDB.GetPhase(ctx, matchID)
}

// SetPhase records a phase and broadcasts the change. The archive writer
// uses this to record saved / save-error after the report write.
func (s *MatchService) SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error {
	before, err := s.MatchDB.GetPhase(ctx, matchID)
	if err != nil {
		return err
	}
	if before.Current == next {
		return nil
	}
	if err := s.MatchDB.SetPhase(ctx, matchID, next); err != nil {
		return err
	}
	s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
		MatchID:  matchID,
		Current:  next,
		Previous: before.Current,
	})
	return nil
}

// GetParticipants resolves the participant index to full session documents
// in one batched read.
func (s *MatchService) GetParticipants(ctx context.Context, matchID string) ([]*sessiontypes.Session, error) {
	ids, err := s.MatchDB.ParticipantIDs(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.SessionDB.GetMany(ctx, ids)
}

// GetParticipantCount returns the participant index length.
func (s *MatchService) GetParticipantCount(ctx context.Context, matchID string) (int, error) {
	return s.MatchDB.ParticipantCount(ctx, matchID)
}

// publishEvent broadcasts a payload; delivery failures are logged, never
// surfaced, because the state transition already committed.
func (s *MatchService) publishEvent(ctx context.Context, topic string, payload any) {
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
