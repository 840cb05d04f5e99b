package app

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"users-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{
			Env:                    "test",
			Host:                   "127.0.0.1",
			HTTPPort:               "0",
			GRPCPort:               "0",
			ShutdownTimeoutSeconds: 5,
			SchemaFailFast:         true,
			AllowedOrigins:         []string{"*"},
		},
		DB: config.DatabaseConfig{
			Driver:        "sqlite",
			Path:          filepath.Join(t.TempDir(), "database.sqlite"),
			BusyTimeoutMS: 1000,
		},
		Redis:     config.RedisConfig{CacheTTL: 60},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 10, BurstCapacity: 20},
		Logger: config.LoggerConfig{
			Level:       "error",
			Format:      "json",
			OutputPath:  filepath.Join(t.TempDir(), "app.log"),
			ServiceName: "users-api",
		},
	}
}

func TestApp_RunServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewWithConfig(ctx, testConfig(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool { return a.Server.HTTPAddr() != nil }, 5*time.Second, 10*time.Millisecond)
	base := "http://" + a.Server.HTTPAddr().String()

	resp, err := http.Post(base+"/users", "application/json",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/users")
	require.NoError(t, err)
	var users []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	_ = resp.Body.Close()
	require.Len(t, users, 1)
	assert.Equal(t, "Ada", users[0]["name"])

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWithConfig_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logger.Level = "loud"

	_, err := NewWithConfig(context.Background(), cfg)
	require.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, ".", getConfigPath())

	t.Setenv("CONFIG_PATH", "/etc/users-api")
	assert.Equal(t, "/etc/users-api", getConfigPath())
}
