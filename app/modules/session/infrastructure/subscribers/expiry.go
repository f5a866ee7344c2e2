// Package subscribers hosts the always-running listeners that react to
// store-side notifications out of band of any caller request.
package subscribers

import (
	"context"
	"errors"
	"log/slog"

	sessionservice "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/application"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/app/shared/observability"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// ExpirySubscriber feeds expired session keys into the registry's
// synchronization routine.
type ExpirySubscriber struct {
	Store   *redisdocs.Store
	Service sessionservice.Service
	Logger  *slog.Logger
}

// Run blocks consuming expiry notifications until ctx is cancelled. Stale
// notifications (session recreated) are expected and only logged.
func (s *ExpirySubscriber) Run(ctx context.Context) error {
	if err := s.Store.EnableExpiryNotifications(ctx); err != nil {
		return err
	}
	feed, err := s.Store.SubscribeExpired(ctx, redisdocs.SessionKeyPrefix())
	if err != nil {
		return err
	}
	defer feed.Close()

	s.Logger.InfoContext(ctx, "session expiry subscriber running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-feed.Keys():
			if !ok {
				return errors.New("expiry feed closed")
			}
			s.handle(ctx, key)
		}
	}
}

func (s *ExpirySubscriber) handle(ctx context.Context, key string) {
	err := s.Service.SyncExpired(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, sessiondb.ErrSessionRecreated):
		// Already counted and logged by the service.
	case errors.Is(err, sessiondb.ErrMatchNotFound):
		// Match cascade-deleted before the notification landed.
		s.Logger.DebugContext(ctx, "expired session had no match",
			observability.String("session_id", key))
	default:
		s.Logger.ErrorContext(ctx, "failed to sync expired session",
			observability.String("session_id", key),
			observability.Error(err))
	}
}
