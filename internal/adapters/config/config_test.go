package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "refuge", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "models", cfg.Model.Dir)
	assert.Empty(t, cfg.Audit.DBPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_DIR", "/var/lib/refuge/models")
	t.Setenv("PREDICTIONS_DB_PATH", "/var/lib/refuge/predictions.db")
	t.Setenv("CORS_ORIGINS", "https://refuge.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/refuge/models", cfg.Model.Dir)
	assert.Equal(t, "/var/lib/refuge/predictions.db", cfg.Audit.DBPath)
	assert.Equal(t, []string{"https://refuge.example"}, cfg.Server.CORSOrigins)
}
