package matchservice

import (
	"context"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// Service is the match registry surface. SetPhase is also the write-back
// hook handed to the persistence collaborator for saved / save-error.
type Service interface {
	CreateMatch(ctx context.Context, input matchtypes.CreateMatchInput) (*matchtypes.Match, error)
	GetMatch(ctx context.Context, matchID string) (*matchtypes.Match, error)
	DeleteMatch(ctx context.Context, matchID string) error

	GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error)
	SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error

	GetParticipants(ctx context.Context, matchID string) ([]*sessiontypes.Session, error)
	GetParticipantCount(ctx context.Context, matchID string) (int, error)
}
