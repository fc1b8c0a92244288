package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets overrides the host environment may carry.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range legacyEnv {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "models", cfg.Model.BasePath)
	assert.Equal(t, "gbt_model", cfg.Model.Prefix)
	assert.Equal(t, 30, cfg.Model.NFeatures)
	assert.Equal(t, "us-east-2", cfg.Model.Region)
	assert.Equal(t, 30, cfg.Training.DaysBack)
	assert.InDelta(t, 0.2, cfg.Training.TestSize, 1e-12)
	assert.True(t, cfg.Training.Tune)
	assert.Equal(t, 2*time.Hour, cfg.Inference.Window())
	assert.Equal(t, ":5000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Server.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.GBFS.Interval)
	assert.Contains(t, cfg.GBFS.StationStatusURL, "station_status.json")
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.MaxConnIdleTime)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("FORECAST_SERVER_PORT", "8081")
	t.Setenv("FORECAST_SERVER_CACHE_TTL", "5m")
	t.Setenv("FORECAST_TRAINING_TUNE", "false")
	t.Setenv("FORECAST_LOGGING_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.CacheTTL)
	assert.False(t, cfg.Training.Tune)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://legacy@db/divvy")
	t.Setenv("LOCAL_DATA_DIR", "/data")
	t.Setenv("MODEL_S3_BUCKET", "models-bucket")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("ML_PORT", "5050")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://legacy@db/divvy", cfg.Database.PostgresDSN)
	assert.Equal(t, "/data", cfg.Database.LocalDataDir)
	assert.Equal(t, "models-bucket", cfg.Model.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Model.Region)
	assert.Equal(t, 5050, cfg.Server.Port)
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("DB_URL", "postgres://legacy@db/divvy")
	t.Setenv("FORECAST_DATABASE_POSTGRES_DSN", "postgres://new@db/forecast")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://new@db/forecast", cfg.Database.PostgresDSN)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  n_features: 12
  bucket: from-file
training:
  days_back: 7
gbfs:
  interval: 5m
`), 0o644))
	t.Setenv("FORECAST_TRAINING_DAYS_BACK", "14")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Model.NFeatures)
	assert.Equal(t, "from-file", cfg.Model.Bucket)
	assert.Equal(t, 14, cfg.Training.DaysBack, "env overrides file")
	assert.Equal(t, 5*time.Minute, cfg.GBFS.Interval)
	assert.Equal(t, "gbt_model", cfg.Model.Prefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Training.TestSize = 1
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	cfg.Database.MinConns = 11

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training.test_size")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "database.min_conns")
}
