package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("RPCPARAM_TRANSPORT", "http")
	t.Setenv("RPCPARAM_DEVELOPER", "true")
	t.Setenv("RPCPARAM_LISTEN", ":8080")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.True(t, cfg.Developer)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.EqualValues(t, 4<<20, cfg.MaxBodyBytes)
	assert.Equal(t, 10000, cfg.MemoryMaxItems)
	require.NoError(t, cfg.Validate())
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "rpcparamd.yaml", "transport: http\nlog_level: debug\ndeveloper: true\n")

	cfg, err := LoadFile(path, Default())
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Developer)
	assert.Equal(t, "127.0.0.1:9835", cfg.Listen)
	assert.Equal(t, path, cfg.File)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	empty := writeFile(t, "empty.yml", "")
	cfg, err = LoadFile(empty, Default())
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, cfg.Transport)

	bad := writeFile(t, "bad.yaml", "transprot: http\n")
	_, err = LoadFile(bad, Default())
	assert.Error(t, err)
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, "rpcparamd.toml", "store = \"redis\"\nredis_addr = \"redis:6379\"\nmax_body_bytes = 1024\nmemory_max_items = 50\n")

	cfg, err := LoadFile(path, Default())
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.EqualValues(t, 1024, cfg.MaxBodyBytes)
	assert.Equal(t, 50, cfg.MemoryMaxItems)

	bad := writeFile(t, "bad.toml", "stor = \"redis\"\n")
	_, err = LoadFile(bad, Default())
	assert.ErrorContains(t, err, "unknown key")

	_, err = LoadFile(writeFile(t, "x.json", "{}"), Default())
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "rpcparamd.yaml", "transport: carrier-pigeon\n")
	t.Setenv("RPCPARAM_CONFIG", path)
	_, err := Load()
	assert.ErrorContains(t, err, "transport must be")

	require.NoError(t, os.WriteFile(path, []byte("transport: http\n"), 0o600))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Transport)
}

func TestValidate(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Store = "disk" },
		func(c *Config) { c.LogLevel = "loud" },
		func(c *Config) { c.MaxBodyBytes = 0 },
		func(c *Config) { c.MemoryMaxItems = -1 },
	} {
		cfg := Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate())
	}
}

func TestWatch(t *testing.T) {
	path := writeFile(t, "rpcparamd.yaml", "log_level: info\n")
	cfg, err := LoadFile(path, Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []Config
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), func(c Config) {
			mu.Lock()
			seen = append(seen, c)
			mu.Unlock()
		})
	}()

	// The watcher may not be registered yet; keep rewriting until seen.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("log_level: debug\ndeveloper: true\n"), 0o600)
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return false
		}
		last := seen[len(seen)-1]
		return last.LogLevel == "debug" && last.Developer
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	assert.Error(t, Watch(context.Background(), Config{}, nil, func(Config) {}))
}
