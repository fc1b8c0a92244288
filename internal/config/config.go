// Package config loads settings from defaults, an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORECAST_SERVER_PORT.
const EnvPrefix = "FORECAST"

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Model     ModelConfig     `mapstructure:"model"`
	Training  TrainingConfig  `mapstructure:"training"`
	Inference InferenceConfig `mapstructure:"inference"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	GBFS      GBFSConfig      `mapstructure:"gbfs"`
}

// DatabaseConfig selects the time series source and the prediction log.
// PostgresDSN wins over LocalDataDir when both are set.
type DatabaseConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	LocalDataDir  string `mapstructure:"local_data_dir"`

	// PostgreSQL pool sizing. Pool settings in the DSN win.
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ModelConfig locates model bundles.
type ModelConfig struct {
	BasePath   string `mapstructure:"base_path"`
	Prefix     string `mapstructure:"prefix"`
	NFeatures  int    `mapstructure:"n_features"`
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
}

// TrainingConfig controls training runs.
type TrainingConfig struct {
	DaysBack    int     `mapstructure:"days_back"`
	TestSize    float64 `mapstructure:"test_size"`
	Tune        bool    `mapstructure:"tune"`
	Parallelism int     `mapstructure:"parallelism"`
	ReportDir   string  `mapstructure:"report_dir"`
}

// InferenceConfig controls snapshot loading.
type InferenceConfig struct {
	HoursBack int `mapstructure:"hours_back"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GBFSConfig locates the station feeds.
type GBFSConfig struct {
	StationInfoURL   string        `mapstructure:"station_info_url"`
	StationStatusURL string        `mapstructure:"station_status_url"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Addr returns the listen address of the HTTP service.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Window returns the inference window as a duration.
func (c InferenceConfig) Window() time.Duration {
	return time.Duration(c.HoursBack) * time.Hour
}

var defaults = map[string]any{
	"database.postgres_dsn":       "",
	"database.clickhouse_dsn":     "",
	"database.local_data_dir":     "",
	"database.max_conns":          10,
	"database.min_conns":          0,
	"database.max_conn_idle_time": 5 * time.Minute,

	"model.base_path":   "models",
	"model.prefix":      "gbt_model",
	"model.n_features":  30,
	"model.bucket":      "",
	"model.region":      "us-east-2",
	"model.s3_endpoint": "",

	"training.days_back":   30,
	"training.test_size":   0.2,
	"training.tune":        true,
	"training.parallelism": 0,
	"training.report_dir":  "reports",

	"inference.hours_back": 2,

	"server.port":             5000,
	"server.cache_ttl":        15 * time.Minute,
	"server.redis_addr":       "",
	"server.shutdown_timeout": 30 * time.Second,

	"logging.level":  "info",
	"logging.format": "json",

	"gbfs.station_info_url":   "https://gbfs.divvybikes.com/gbfs/en/station_information.json",
	"gbfs.station_status_url": "https://gbfs.divvybikes.com/gbfs/en/station_status.json",
	"gbfs.interval":           15 * time.Minute,
	"gbfs.timeout":            30 * time.Second,
}

// legacyEnv maps keys to the environment names deployments already use.
// The FORECAST_ name takes precedence.
var legacyEnv = map[string][]string{
	"database.postgres_dsn":   {"DB_URL"},
	"database.local_data_dir": {"LOCAL_DATA_DIR"},
	"model.bucket":            {"MODEL_S3_BUCKET"},
	"model.region":            {"AWS_REGION"},
	"server.port":             {"ML_PORT"},
	"gbfs.station_info_url":   {"DIVVY_STATION_INFO_URL"},
	"gbfs.station_status_url": {"DIVVY_STATION_STATUS_URL"},
}

// Load reads configuration. An empty path skips the file; a missing file
// at a given path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envNames := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges. It does not require a data source since
// not every command reads one.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("database.max_conns must be positive, got %d", c.Database.MaxConns))
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database.min_conns must be in [0, max_conns], got %d", c.Database.MinConns))
	}
	if c.Model.BasePath == "" {
		errs = append(errs, errors.New("model.base_path is required"))
	}
	if c.Model.Prefix == "" {
		errs = append(errs, errors.New("model.prefix is required"))
	}
	if c.Model.NFeatures <= 0 {
		errs = append(errs, fmt.Errorf("model.n_features must be positive, got %d", c.Model.NFeatures))
	}
	if c.Training.DaysBack <= 0 {
		errs = append(errs, fmt.Errorf("training.days_back must be positive, got %d", c.Training.DaysBack))
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("training.test_size must be in (0, 1), got %g", c.Training.TestSize))
	}
	if c.Training.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("training.parallelism must not be negative, got %d", c.Training.Parallelism))
	}
	if c.Inference.HoursBack <= 0 {
		errs = append(errs, fmt.Errorf("inference.hours_back must be positive, got %d", c.Inference.HoursBack))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.cache_ttl must be positive, got %s", c.Server.CacheTTL))
	}
	if c.GBFS.Interval <= 0 {
		errs = append(errs, fmt.Errorf("gbfs.interval must be positive, got %s", c.GBFS.Interval))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
