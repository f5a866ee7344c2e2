// integration_tests/containers/redis_container.go
package containers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// The registries need the JSON module, so this is the stack image rather
// than plain redis.
const redisImage = "redis/redis-stack-server:7.4.0-v3"

// SetupRedisContainer starts a Redis Stack testcontainer and returns the
// container and a redis:// connection URL.
func SetupRedisContainer(ctx context.Context) (*tcredis.RedisContainer, string, error) {
	container, err := tcredis.Run(ctx,
		redisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(45*time.Second),
		),
	)
	if err != nil {
		if container != nil {
			container.Terminate(ctx)
		}
		return nil, "", fmt.Errorf("failed to start redis container: %w", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get redis connection string: %w", err)
	}

	log.Printf("Redis container started at %s", url)
	return container, url, nil
}
