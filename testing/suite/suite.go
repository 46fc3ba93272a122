package suite

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// RedisAddrEnv - address of a running Redis to test against instead of a container.
const RedisAddrEnv = "CARO_TEST_REDIS_ADDR"

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "7-alpine"
)

// Suite is one test's view of an empty Redis.
type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage   *redis.Client
	RedisAddr string
}

// New - starts Redis in Docker, or uses RedisAddrEnv when set, and flushes it.
// The test is skipped when neither is available.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(cancel)

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		addr = startContainer(t)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("could not connect to redis at %s: %v", addr, err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	return ctx, &Suite{
		T:         t,
		Logger:    NopLogger(),
		Storage:   client,
		RedisAddr: addr,
	}
}

// Keys - the stored keys matching pattern, sorted.
func (that *Suite) Keys(ctx context.Context, pattern string) []string {
	that.Helper()

	keys, err := that.Storage.Keys(ctx, pattern).Result()
	require.NoError(that, err)
	slices.Sort(keys)

	return keys
}

// RequireExpiring - key exists and expires within ttl.
func (that *Suite) RequireExpiring(ctx context.Context, key string, ttl time.Duration) {
	that.Helper()

	left, err := that.Storage.TTL(ctx, key).Result()
	require.NoError(that, err)
	require.Greater(that, left, time.Duration(0), "%s has no expiry", key)
	require.LessOrEqual(that, left, ttl)
}

// startContainer - a throwaway Redis; docker kills it after expireDuration seconds at the latest.
func startContainer(t *testing.T) string {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	if err = pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available, set %s to use a running redis: %v", RedisAddrEnv, err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
		Labels:     map[string]string{"app": "caro-test"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start redis container: %v", err)
	}

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge redis container: %v", err)
		}
	})

	_ = resource.Expire(expireDuration)

	addr := resource.GetHostPort(redisPort)

	// the server in the container may not accept connections yet
	pool.MaxWait = maxWaitDuration
	if err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()

		return client.Ping(context.Background()).Err()
	}); err != nil {
		t.Fatalf("redis container never became ready: %v", err)
	}

	return addr
}
