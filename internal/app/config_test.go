package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/tunebridge-backend/internal/data/db"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "RUN_SERVER", "RUN_WORKER", "TEMPORAL_ADDRESS", "RECONCILER_SCHEDULE", "DISPATCH_MAX_ATTEMPTS", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")

	cfg := LoadConfig(logger.Nop())
	require.Equal(t, "8080", cfg.Port)
	require.True(t, cfg.RunServer)
	require.True(t, cfg.RunWorker)
	require.True(t, cfg.InlineMode())
	require.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	require.Equal(t, "https://api.example.com", cfg.PublicBaseURL)
	require.Equal(t, "@every 1m", cfg.Reconciler.Schedule)
	require.Equal(t, 2*time.Minute, cfg.Reconciler.StaleAfter)
	require.Equal(t, 5, cfg.Reconciler.MaxAttempts)
	require.Equal(t, 90*time.Second, cfg.DatagenTimeout)
	require.Empty(t, cfg.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RUN_WORKER", "false")
	t.Setenv("TEMPORAL_ADDRESS", "temporal:7233")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")
	t.Setenv("LOG_MODE", "prod")

	cfg := LoadConfig(logger.Nop())
	require.False(t, cfg.RunWorker)
	require.False(t, cfg.InlineMode())
	require.True(t, cfg.Production())
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}
