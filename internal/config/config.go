package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Keywords  KeywordsConfig  `yaml:"keywords" mapstructure:"keywords"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	EBay      EBayConfig      `yaml:"ebay" mapstructure:"ebay"`
	State     StateConfig     `yaml:"state" mapstructure:"state"`
}

// StoreConfig configures the detections database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// KeywordsConfig configures the multilingual keyword corpus load.
type KeywordsConfig struct {
	FilePath        string  `yaml:"file_path" mapstructure:"file_path"`
	ExpectedTotal   int     `yaml:"expected_total" mapstructure:"expected_total"`
	MinAcceptedFrac float64 `yaml:"min_accepted_frac" mapstructure:"min_accepted_frac"`
}

// SchedulerConfig configures the per-cycle scan scheduler.
type SchedulerConfig struct {
	BatchSize          int           `yaml:"batch_size" mapstructure:"batch_size"`
	ScanDuration        time.Duration `yaml:"scan_duration" mapstructure:"scan_duration"`
	MaxRetryAttempts   int           `yaml:"max_retry_attempts" mapstructure:"max_retry_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
	RetryTimeoutMul    float64       `yaml:"retry_timeout_multiplier" mapstructure:"retry_timeout_multiplier"`
	EnableHistorical   bool          `yaml:"enable_historical_backfill" mapstructure:"enable_historical_backfill"`
	HistoricalDays     int           `yaml:"historical_days" mapstructure:"historical_days"`
}

// DedupConfig configures the in-memory dedup cache.
type DedupConfig struct {
	HighWatermark    int `yaml:"high_watermark" mapstructure:"high_watermark"`
	LowWatermark     int `yaml:"low_watermark" mapstructure:"low_watermark"`
	SnapshotInterval int `yaml:"snapshot_interval_cycles" mapstructure:"snapshot_interval_cycles"`
}

// ScorerConfig configures threat-scoring thresholds.
type ScorerConfig struct {
	WildlifeThreshold int `yaml:"wildlife_threshold" mapstructure:"wildlife_threshold"`
	HTThreshold       int `yaml:"ht_threshold" mapstructure:"ht_threshold"`
}

// EBayConfig holds eBay Browse API OAuth2 credentials.
type EBayConfig struct {
	AppID  string `yaml:"app_id" mapstructure:"app_id"`
	CertID string `yaml:"cert_id" mapstructure:"cert_id"`
}

// StateConfig configures where JSON-shaped durable state files live.
type StateConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// Validate checks required configuration fields based on run mode.
// Supported modes: "run", "score", "coverage".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.EBay.AppID == "" || c.EBay.CertID == "" {
			errs = append(errs, "ebay.app_id and ebay.cert_id are required for the eBay adapter")
		}
	case "score", "coverage":
		// no external dependencies required for offline commands
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Scheduler.BatchSize < 1 {
		errs = append(errs, "scheduler.batch_size must be >= 1")
	}
	if c.Dedup.LowWatermark >= c.Dedup.HighWatermark {
		errs = append(errs, "dedup.low_watermark must be less than dedup.high_watermark")
	}
	if c.Keywords.MinAcceptedFrac <= 0 || c.Keywords.MinAcceptedFrac > 1 {
		errs = append(errs, "keywords.min_accepted_frac must be in (0, 1]")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("keywords.file_path", "keywords.json")
	v.SetDefault("keywords.expected_total", 1452)
	v.SetDefault("keywords.min_accepted_frac", 0.9)
	v.SetDefault("scheduler.batch_size", 24)
	v.SetDefault("scheduler.scan_duration", "4h")
	v.SetDefault("scheduler.max_retry_attempts", 4)
	v.SetDefault("scheduler.retry_base_delay", "2s")
	v.SetDefault("scheduler.retry_max_delay", "45s")
	v.SetDefault("scheduler.retry_timeout_multiplier", 1.8)
	v.SetDefault("scheduler.enable_historical_backfill", false)
	v.SetDefault("scheduler.historical_days", 7)
	v.SetDefault("dedup.high_watermark", 150_000)
	v.SetDefault("dedup.low_watermark", 100_000)
	v.SetDefault("dedup.snapshot_interval_cycles", 10)
	v.SetDefault("scorer.wildlife_threshold", 25)
	v.SetDefault("scorer.ht_threshold", 30)
	v.SetDefault("state.dir", "/tmp/sentinel")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
