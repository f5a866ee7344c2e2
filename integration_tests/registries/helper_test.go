package registries

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/integration_tests/containers"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// TestEnvironment holds the shared container and registries. One container
// serves the whole package; tests isolate through unique match ids.
type TestEnvironment struct {
	Ctx            context.Context
	CancelContext  context.CancelFunc
	RedisContainer *tcredis.RedisContainer
	Store          *redisdocs.Store
	Matches        *matchdb.MatchDBImpl
	Sessions       *sessiondb.SessionDBImpl
}

// NewTestEnvironment starts a Redis Stack container and wires the registries
// against it.
func NewTestEnvironment() (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())

	container, url, err := containers.SetupRedisContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup redis container: %w", err)
	}

	store, err := redisdocs.New(ctx, redisdocs.Config{URL: url})
	if err != nil {
		container.Terminate(ctx)
		cancel()
		return nil, fmt.Errorf("failed to connect store: %w", err)
	}

	logger := slog.New(slog.DiscardHandler)
	return &TestEnvironment{
		Ctx:            ctx,
		CancelContext:  cancel,
		RedisContainer: container,
		Store:          store,
		Matches:        &matchdb.MatchDBImpl{Store: store, Logger: logger},
		Sessions:       &sessiondb.SessionDBImpl{Store: store, Logger: logger},
	}, nil
}

// Teardown releases the store and terminates the container.
func (env *TestEnvironment) Teardown() {
	if env.Store != nil {
		env.Store.Close()
	}
	if env.RedisContainer != nil {
		env.RedisContainer.Terminate(env.Ctx)
	}
	env.CancelContext()
}

// requireEnv skips tests when the shared environment was not started.
func requireEnv(t *testing.T) *TestEnvironment {
	t.Helper()
	if env == nil {
		t.Skip("skipping container-backed test in short mode")
	}
	return env
}

// seedMatch writes a fresh match document directly through the registry and
// returns its id.
func seedMatch(t *testing.T, env *TestEnvironment, phase matchtypes.Phase, maxParticipants int) string {
	t.Helper()
	match := &matchtypes.Match{
		ID:              gofakeit.UUID(),
		Name:            gofakeit.Sentence(3),
		HostID:          gofakeit.UUID(),
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
		MaxParticipants: maxParticipants,
		ArrowsPerEnd:    3,
		NumEnds:         2,
		CurrentPhase:    phase,
		PreviousPhase:   matchtypes.PhaseOpen,
		Participants:    []string{},
	}
	if err := env.Matches.Create(env.Ctx, match); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return match.ID
}

// joinAs creates a session for the user and returns its id.
func joinAs(t *testing.T, env *TestEnvironment, matchID, userID string, role sessiontypes.Role) string {
	t.Helper()
	session, _, err := env.Sessions.Create(env.Ctx, matchID, sessiontypes.CreateSessionInput{
		UserID:    userID,
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Role:      role,
	})
	if err != nil {
		t.Fatalf("join %s as %s: %v", matchID, role, err)
	}
	return session.ID
}
