package sessionservice

import (
	"context"

	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// Service is the session registry surface. SyncExpired is what the expiry
// subscriber invokes for each expired session key.
type Service interface {
	CreateSession(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error)
	GetSession(ctx context.Context, sessionID string) (*sessiontypes.Session, error)
	DeleteSession(ctx context.Context, sessionID string) (int, error)
	SyncExpired(ctx context.Context, sessionID string) error
}
