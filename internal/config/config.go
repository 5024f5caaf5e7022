package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	ESPN       ESPNConfig       `yaml:"espn" mapstructure:"espn"`
	Playerbox  PlayerboxConfig  `yaml:"playerbox" mapstructure:"playerbox"`
	Calendar   CalendarConfig   `yaml:"calendar" mapstructure:"calendar"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Roster     RosterConfig     `yaml:"roster" mapstructure:"roster"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ESPNConfig holds ESPN site API settings.
type ESPNConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PlayerboxConfig points at the per-season player box score CSV feed.
type PlayerboxConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PreseasonWindow bounds the preseason for one season, as MM-DD strings.
type PreseasonWindow struct {
	Season int    `yaml:"season" mapstructure:"season"`
	Start  string `yaml:"start" mapstructure:"start"`
	End    string `yaml:"end" mapstructure:"end"`
}

// CalendarConfig configures the game calendar and its caches.
type CalendarConfig struct {
	CacheHours              int               `yaml:"cache_hours" mapstructure:"cache_hours"`
	CurrentSeasonCacheHours int               `yaml:"current_season_cache_hours" mapstructure:"current_season_cache_hours"`
	LookbackDays            int               `yaml:"lookback_days" mapstructure:"lookback_days"`
	PreseasonWindows        []PreseasonWindow `yaml:"preseason_windows" mapstructure:"preseason_windows"`
}

// ResolverConfig holds date resolution confidence thresholds.
type ResolverConfig struct {
	HighThreshold          float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	MinimumConfidence      float64 `yaml:"minimum_confidence" mapstructure:"minimum_confidence"`
	BoxscoreConfidence     float64 `yaml:"boxscore_confidence" mapstructure:"boxscore_confidence"`
	GameScheduleConfidence float64 `yaml:"game_schedule_confidence" mapstructure:"game_schedule_confidence"`
	ContextConfidence      float64 `yaml:"context_confidence" mapstructure:"context_confidence"`
	ExplicitConfidence     float64 `yaml:"explicit_confidence" mapstructure:"explicit_confidence"`
}

// DedupConfig tunes semantic duplicate detection.
type DedupConfig struct {
	Threshold      float64  `yaml:"threshold" mapstructure:"threshold"`
	StatCategories []string `yaml:"stat_categories" mapstructure:"stat_categories"`
	StatProximity  float64  `yaml:"stat_proximity" mapstructure:"stat_proximity"`
	OfficialTokens []string `yaml:"official_tokens" mapstructure:"official_tokens"`
}

// RosterConfig points at the player registry file.
type RosterConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig configures session processing.
type PipelineConfig struct {
	ResolveConcurrency  int `yaml:"resolve_concurrency" mapstructure:"resolve_concurrency"`
	ClassifyConcurrency int `yaml:"classify_concurrency" mapstructure:"classify_concurrency"`
	PostLimit           int `yaml:"post_limit" mapstructure:"post_limit"`
}

// OutputConfig configures CSV export.
type OutputConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	SubmitterName  string `yaml:"submitter_name" mapstructure:"submitter_name"`
	SubmitterEmail string `yaml:"submitter_email" mapstructure:"submitter_email"`
	UserID         string `yaml:"user_id" mapstructure:"user_id"`
}

// MonitoringConfig configures run health checks and alerting.
type MonitoringConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalMins int     `yaml:"check_interval_mins" mapstructure:"check_interval_mins"`
	LookbackHours     int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MaxFailureRate    float64 `yaml:"max_failure_rate" mapstructure:"max_failure_rate"`
	MaxUnresolvedRate float64 `yaml:"max_unresolved_rate" mapstructure:"max_unresolved_rate"`
	MaxZeroResultDays int     `yaml:"max_zero_result_days" mapstructure:"max_zero_result_days"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "harvest.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("espn.base_url", "https://site.api.espn.com/apis/site/v2/sports/basketball/wnba")
	v.SetDefault("espn.requests_per_second", 2.0)
	v.SetDefault("espn.timeout_secs", 20)
	v.SetDefault("playerbox.base_url", "https://github.com/sportsdataverse/sportsdataverse-data/releases/download/espn_wnba_player_boxscores")
	v.SetDefault("playerbox.requests_per_second", 1.0)
	v.SetDefault("calendar.cache_hours", 6)
	v.SetDefault("calendar.current_season_cache_hours", 1)
	v.SetDefault("calendar.lookback_days", 60)
	v.SetDefault("calendar.preseason_windows", []map[string]any{
		{"season": 2024, "start": "05-09", "end": "05-19"},
		{"season": 2025, "start": "05-06", "end": "05-16"},
	})
	v.SetDefault("resolver.high_threshold", 0.8)
	v.SetDefault("resolver.minimum_confidence", 0.7)
	v.SetDefault("resolver.boxscore_confidence", 0.9)
	v.SetDefault("resolver.game_schedule_confidence", 0.7)
	v.SetDefault("resolver.context_confidence", 0.8)
	v.SetDefault("resolver.explicit_confidence", 0.6)
	v.SetDefault("dedup.threshold", 85)
	v.SetDefault("dedup.stat_categories", []string{"scoring", "assists", "rebounding", "steals", "blocks"})
	v.SetDefault("dedup.stat_proximity", 0.8)
	v.SetDefault("dedup.official_tokens", []string{"wnba", "espn", "fever"})
	v.SetDefault("roster.path", "players.yaml")
	v.SetDefault("pipeline.resolve_concurrency", 4)
	v.SetDefault("pipeline.classify_concurrency", 4)
	v.SetDefault("pipeline.post_limit", 100)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.submitter_name", "FanbaseHQ Harvester")
	v.SetDefault("monitoring.check_interval_mins", 60)
	v.SetDefault("monitoring.lookback_hours", 72)
	v.SetDefault("monitoring.max_failure_rate", 0.2)
	v.SetDefault("monitoring.max_unresolved_rate", 0.5)
	v.SetDefault("monitoring.max_zero_result_days", 3)

	// Read config file (optional)
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

// Validate checks the settings required by the given command mode.
// Supported modes are "run", "resolve", "calendar" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Roster.Path == "" {
			errs = append(errs, "roster.path is required")
		}
		if c.Pipeline.ResolveConcurrency < 1 || c.Pipeline.ResolveConcurrency > 32 {
			errs = append(errs, "pipeline.resolve_concurrency must be between 1 and 32")
		}
	case "resolve", "calendar":
		if c.Roster.Path == "" {
			errs = append(errs, "roster.path is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	r := c.Resolver
	thresholds := []struct {
		name string
		v    float64
	}{
		{"high_threshold", r.HighThreshold},
		{"minimum_confidence", r.MinimumConfidence},
		{"boxscore_confidence", r.BoxscoreConfidence},
		{"game_schedule_confidence", r.GameScheduleConfidence},
		{"context_confidence", r.ContextConfidence},
		{"explicit_confidence", r.ExplicitConfidence},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 1 {
			errs = append(errs, fmt.Sprintf("resolver.%s must be between 0 and 1", th.name))
		}
	}

	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 100 {
		errs = append(errs, "dedup.threshold must be between 0 and 100")
	}
	if c.Dedup.StatProximity < 0 || c.Dedup.StatProximity > 1 {
		errs = append(errs, "dedup.stat_proximity must be between 0 and 1")
	}
	for _, w := range c.Calendar.PreseasonWindows {
		if w.Season <= 0 || w.Start == "" || w.End == "" {
			errs = append(errs, fmt.Sprintf("calendar.preseason_windows entry for season %d is incomplete", w.Season))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
