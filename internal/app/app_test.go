package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm/adapters"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/logger"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// Config Tests
// =============================================================================

func TestConfigManager_LoadMissingFileUsesDefaults(t *testing.T) {
	cm := NewConfigManagerAt(filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := cm.Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ProviderOpenAI, cfg.Defaults.Provider)
	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, ratelimit.DefaultConfig(), cfg.RateLimit.Config)
	assert.Equal(t, 1000, cfg.Generation.MaxTokens)
}

func TestConfigManager_Load(t *testing.T) {
	t.Setenv("BRANDIUM_TEST_KEY", "sk-from-env")

	path := writeConfig(t, `
version: 1
providers:
  openai:
    api_key: ${BRANDIUM_TEST_KEY}
    default_model: gpt-4o
  local:
    base_url: http://localhost:1234
    timeout: 30s
defaults:
  provider: local
logging:
  level: debug
rate_limit:
  max_requests: 3
  window: 2m
generation:
  temperature: 0.4
`)

	cfg, err := NewConfigManagerAt(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4o", cfg.Providers["openai"].DefaultModel)
	assert.Equal(t, 30*time.Second, cfg.Providers["local"].Timeout)
	assert.Equal(t, ProviderLocal, cfg.Defaults.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, ratelimit.DefaultMaxTokens, cfg.RateLimit.MaxTokens, "unset field keeps default")

	assert.Equal(t, 0.4, cfg.Generation.Temperature)
	assert.Equal(t, 1000, cfg.Generation.MaxTokens)
}

func TestConfigManager_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-env-key")

	cfg, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)

	require.Contains(t, cfg.Providers, "gemini")
	assert.Equal(t, "gemini-env-key", cfg.Providers["gemini"].APIKey)
}

func TestConfigManager_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "providers: ["},
		{name: "unknown provider", content: "defaults:\n  provider: acme\n"},
		{name: "unknown backend", content: "rate_limit:\n  backend: etcd\n"},
		{name: "redis without address", content: "rate_limit:\n  backend: redis\n"},
		{name: "negative ceiling", content: "rate_limit:\n  max_requests: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigManagerAt(writeConfig(t, tt.content)).Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigManager_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brandium", "config.yaml")
	cm := NewConfigManagerAt(path)

	cfg := DefaultConfig()
	cfg.Defaults.Provider = ProviderGemini
	cfg.RateLimit.Window = 90 * time.Second
	cfg.Providers["gemini"] = &ProviderConfig{DefaultModel: "gemini-2.5-pro"}
	require.NoError(t, cm.Save(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewConfigManagerAt(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, loaded.Defaults.Provider)
	assert.Equal(t, 90*time.Second, loaded.RateLimit.Window)
	assert.Equal(t, "gemini-2.5-pro", loaded.Providers["gemini"].DefaultModel)
}

func TestConfigManager_ProviderConfig(t *testing.T) {
	cm := NewConfigManagerAt(filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("OPENAI_API_KEY", "")

	_, err := cm.ProviderConfig(ProviderOpenAI)
	assert.Error(t, err)

	local, err := cm.ProviderConfig(ProviderLocal)
	require.NoError(t, err)
	assert.NotNil(t, local)
}

// =============================================================================
// App Tests
// =============================================================================

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("openai", func(t *testing.T) {
		p, err := NewProvider(ctx, ProviderOpenAI, &ProviderConfig{APIKey: "sk-test", DefaultModel: "gpt-4o"})
		require.NoError(t, err)
		defer p.Close()
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := NewProvider(ctx, ProviderOpenAI, &ProviderConfig{})
		assert.Error(t, err)
	})

	t.Run("local defaults base url", func(t *testing.T) {
		p, err := NewProvider(ctx, ProviderLocal, nil)
		require.NoError(t, err)
		defer p.Close()

		local, ok := p.(*adapters.LocalAdapter)
		require.True(t, ok)
		assert.Equal(t, "http://localhost:11434", local.BaseURL())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewProvider(ctx, "acme", &ProviderConfig{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestApp_MemoryLimiter(t *testing.T) {
	path := writeConfig(t, "rate_limit:\n  max_requests: 2\n")
	a, err := New(WithConfigPath(path), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer a.Close()

	limiter, err := a.Limiter(context.Background())
	require.NoError(t, err)

	mem, ok := limiter.(*ratelimit.MemoryLimiter)
	require.True(t, ok)
	assert.Equal(t, 2, mem.Config().MaxRequests)
}

func TestApp_RedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	path := writeConfig(t, "rate_limit:\n  backend: redis\n  redis_addr: "+mr.Addr()+"\n  redis_key: test:window\n  max_requests: 1\n")

	a, err := New(WithConfigPath(path), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer a.Close()

	limiter, err := a.Limiter(context.Background())
	require.NoError(t, err)

	require.NoError(t, limiter.Acquire(context.Background(), 10))
	assert.ErrorIs(t, limiter.Acquire(context.Background(), 10), ratelimit.ErrRateLimitExceeded)
	assert.True(t, mr.Exists("test:window"))
}

func TestApp_Orchestrator(t *testing.T) {
	path := writeConfig(t, "defaults:\n  provider: local\ngeneration:\n  max_tokens: 321\n")
	a, err := New(WithConfigPath(path), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer a.Close()

	orch, err := a.Orchestrator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 321, orch.Config().MaxTokens)

	again, err := a.Orchestrator(context.Background())
	require.NoError(t, err)
	assert.Same(t, orch, again)
}

func TestApp_ProviderOverride(t *testing.T) {
	path := writeConfig(t, "defaults:\n  provider: openai\n")
	a, err := New(WithConfigPath(path), WithProvider(ProviderLocal), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, ProviderLocal, a.ProviderName())
}
