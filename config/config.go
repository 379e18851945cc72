// Package config loads and validates the collector's configuration, merging
// a YAML file with environment variable overrides the way the teacher's
// EnvConfig helper did, but structured as typed sections via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sumologic/mongodbatlas-collector/window"
)

// MongoDBAtlasConfig holds the credentials and target project for the Atlas
// Admin API, corresponding to the "MongoDBAtlas" config section.
type MongoDBAtlasConfig struct {
	PublicAPIKey  string `mapstructure:"PUBLIC_API_KEY"`
	PrivateAPIKey string `mapstructure:"PRIVATE_API_KEY"`
	BaseURL       string `mapstructure:"BASE_URL"`
	ProjectID     string `mapstructure:"PROJECT_ID"`
	OrgID         string `mapstructure:"ORG_ID"`

	// LogTypes enables the log/event/alert streams, matching the source
	// config's free-form LOG_TYPES list: any of DATABASE, AUDIT,
	// EVENTS_PROJECT, EVENTS_ORG, ALERTS.
	LogTypes []string `mapstructure:"LOG_TYPES"`

	// MetricTypes enables the three metric streams; a kind is enabled
	// when its metric-name list is non-empty, mirroring the source
	// config's METRIC_TYPES.PROCESS_METRICS/DISK_METRICS/DATABASE_METRICS.
	MetricTypes struct {
		ProcessMetrics  []string `mapstructure:"PROCESS_METRICS"`
		DiskMetrics     []string `mapstructure:"DISK_METRICS"`
		DatabaseMetrics []string `mapstructure:"DATABASE_METRICS"`
	} `mapstructure:"METRIC_TYPES"`
}

// CollectionConfig holds operational parameters, corresponding to the
// "Collection" config section.
type CollectionConfig struct {
	Environment           string        `mapstructure:"ENVIRONMENT"` // onprem, aws, gcp, azure
	NumWorkers            int           `mapstructure:"NUM_WORKERS"`
	Timeout               time.Duration `mapstructure:"TIMEOUT"`
	MaxRetry              int           `mapstructure:"MAX_RETRY"`
	BackoffFactor         float64       `mapstructure:"BACKOFF_FACTOR"`
	PaginationLimit       int           `mapstructure:"PAGINATION_LIMIT"`
	BackfillDays          int           `mapstructure:"BACKFILL_DAYS"`
	DataRefreshTimeMillis int64         `mapstructure:"DATA_REFRESH_TIME"`
	DBName                string        `mapstructure:"DBNAME"`
	KVStoreBackend        string        `mapstructure:"KVSTORE_BACKEND"` // bolt, couchdb, redis
	KVStoreURL            string        `mapstructure:"KVSTORE_URL"`
	Clusters              []string      `mapstructure:"CLUSTERS"`

	MinWindowSeconds            int64 `mapstructure:"MIN_REQUEST_WINDOW_LENGTH"`
	MaxWindowSeconds            int64 `mapstructure:"MAX_REQUEST_WINDOW_LENGTH"`
	EndTimeOffsetSeconds        int64 `mapstructure:"END_TIME_EPOCH_OFFSET_SECONDS"`
	MaxPayloadBytes             int   `mapstructure:"MAX_PAYLOAD_BYTESIZE"`
	SingleInstanceLockExpiryMin int   `mapstructure:"SINGLE_INSTANCE_LOCK_EXPIRY_MINUTES"`
}

// WindowConfig derives window.Config from the tuning knobs above, falling
// back to window.DefaultConfig's values for anything left unset.
func (c *CollectionConfig) WindowConfig() window.Config {
	cfg := window.DefaultConfig()
	if c.MinWindowSeconds > 0 {
		cfg.MinLength = time.Duration(c.MinWindowSeconds) * time.Second
	}
	if c.MaxWindowSeconds > 0 {
		cfg.MaxLength = time.Duration(c.MaxWindowSeconds) * time.Second
	}
	if c.EndTimeOffsetSeconds > 0 {
		cfg.EndOffset = time.Duration(c.EndTimeOffsetSeconds) * time.Second
	}
	return cfg
}

// SumoLogicConfig holds sink configuration, corresponding to the
// "SumoLogic" config section. Logs, events and alerts are delivered to
// LogsURL; the three metric streams are delivered to MetricsURL, mirroring
// the upstream collector's per-source-category HTTP endpoint split.
type SumoLogicConfig struct {
	Backend     string `mapstructure:"BACKEND"` // http, stdout, file
	LogsURL     string `mapstructure:"LOGS_URL"`
	MetricsURL  string `mapstructure:"METRICS_URL"`
	Compressed  bool   `mapstructure:"COMPRESSED"`
	LogsPath    string `mapstructure:"LOGS_FILE_PATH"`
	MetricsPath string `mapstructure:"METRICS_FILE_PATH"`
}

// LoggingConfig corresponds to the "Logging" config section.
type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// Config is the fully merged collector configuration.
type Config struct {
	MongoDBAtlas MongoDBAtlasConfig `mapstructure:"MongoDBAtlas"`
	Collection   CollectionConfig   `mapstructure:"Collection"`
	SumoLogic    SumoLogicConfig    `mapstructure:"SumoLogic"`
	Logging      LoggingConfig      `mapstructure:"Logging"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("Collection.ENVIRONMENT", "onprem")
	v.SetDefault("Collection.NUM_WORKERS", 4)
	v.SetDefault("Collection.TIMEOUT", "30s")
	v.SetDefault("Collection.MAX_RETRY", 3)
	v.SetDefault("Collection.BACKOFF_FACTOR", 2.0)
	v.SetDefault("Collection.PAGINATION_LIMIT", 100)
	v.SetDefault("Collection.BACKFILL_DAYS", 7)
	v.SetDefault("Collection.DATA_REFRESH_TIME", int64(60*60*1000))
	v.SetDefault("Collection.DBNAME", "mongodbatlascollector")
	v.SetDefault("Collection.KVSTORE_BACKEND", "bolt")
	v.SetDefault("Collection.KVSTORE_URL", "mongodbatlascollector.db")
	v.SetDefault("Collection.MIN_REQUEST_WINDOW_LENGTH", int64(60))
	v.SetDefault("Collection.MAX_REQUEST_WINDOW_LENGTH", int64(3600))
	v.SetDefault("Collection.MAX_PAYLOAD_BYTESIZE", 500_000)
	v.SetDefault("Collection.SINGLE_INSTANCE_LOCK_EXPIRY_MINUTES", 10)
	v.SetDefault("SumoLogic.BACKEND", "http")
	v.SetDefault("SumoLogic.COMPRESSED", true)
	v.SetDefault("Logging.LOG_LEVEL", "info")
	v.SetDefault("Logging.LOG_FORMAT", "text")
}

// Load reads configuration from the YAML file at path (searched in the
// current directory and $HOME when path is empty) and overlays any
// environment variables that match a known key, mirroring the teacher's
// "file first, env as override" merge order.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mongodbatlas")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the fields required to talk to the Atlas API are
// present, matching the teacher's fail-fast style. Sink settings (such as
// the Sumo Logic endpoints) are not checked here.
func (c *Config) Validate() error {
	var missing []string
	if c.MongoDBAtlas.PublicAPIKey == "" {
		missing = append(missing, "MongoDBAtlas.PUBLIC_API_KEY")
	}
	if c.MongoDBAtlas.PrivateAPIKey == "" {
		missing = append(missing, "MongoDBAtlas.PRIVATE_API_KEY")
	}
	if c.MongoDBAtlas.BaseURL == "" {
		missing = append(missing, "MongoDBAtlas.BASE_URL")
	}
	if c.MongoDBAtlas.ProjectID == "" {
		missing = append(missing, "MongoDBAtlas.PROJECT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FunctionTimeout returns the maximum run duration for the configured
// execution environment, mirroring BaseAPI.get_function_timeout. A
// non-positive duration means unbounded (on-prem/host-based execution).
func (c *CollectionConfig) FunctionTimeout() time.Duration {
	switch c.Environment {
	case "aws":
		return 15 * time.Minute
	case "gcp", "azure":
		return 5 * time.Minute
	default:
		return 0
	}
}
