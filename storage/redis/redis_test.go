package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/rpcparam/storage"
	"github.com/ggoodman/rpcparam/storage/storagetest"
)

func TestRedisStorage(t *testing.T) {
	// Skip test if Redis is not available
	probe := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 2})
	if err := probe.Ping(context.Background()).Err(); err != nil {
		_ = probe.Close()
		t.Skipf("Redis not available: %v", err)
	}
	_ = probe.Close()

	storagetest.RunStorageTests(t, func(t *testing.T) storage.Storage {
		// Use a separate DB and a unique prefix so subtests never collide.
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 2})
		s, err := New(context.Background(), Config{
			Client:    client,
			KeyPrefix: "rpcparam:test:" + uuid.NewString() + ":",
		})
		if err != nil {
			t.Fatalf("Failed to create Redis storage: %v", err)
		}
		prefix := s.keyPrefix
		t.Cleanup(func() {
			// The suite closes s first, so sweep with a fresh client.
			c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 2})
			defer c.Close()
			sweeper := &Storage{client: c, keyPrefix: prefix}
			ctx := context.Background()
			if keys, err := sweeper.scanKeys(ctx, prefix+"*"); err == nil && len(keys) > 0 {
				c.Del(ctx, keys...)
			}
		})
		return s
	})
}
