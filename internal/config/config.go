package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Market MarketConfig `yaml:"market" mapstructure:"market"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExportConfig configures allocation runs.
type ExportConfig struct {
	RosterPath          string `yaml:"roster_path" mapstructure:"roster_path"`
	FlushRetries        int    `yaml:"flush_retries" mapstructure:"flush_retries"`
	FlushBackoffMillis  int    `yaml:"flush_backoff_millis" mapstructure:"flush_backoff_millis"`
	MaxConcurrentSheets int    `yaml:"max_concurrent_sheets" mapstructure:"max_concurrent_sheets"`
}

// MarketConfig configures marketplace delivery.
type MarketConfig struct {
	DryRun        bool    `yaml:"dry_run" mapstructure:"dry_run"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ImportConfig configures catalog ingestion.
type ImportConfig struct {
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("LISTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "listing.db")
	v.SetDefault("export.roster_path", "roster.yaml")
	v.SetDefault("export.flush_retries", 2)
	v.SetDefault("export.flush_backoff_millis", 500)
	v.SetDefault("export.max_concurrent_sheets", 4)
	v.SetDefault("market.dry_run", true)
	v.SetDefault("market.rate_per_second", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

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

// Validate checks the fields the given mode depends on. Modes map to
// the top-level commands: "allocate", "import", "history", "serve",
// "migrate".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "migrate", "import", "history":
	case "allocate":
		if c.Export.RosterPath == "" {
			problems = append(problems, "export.roster_path is required")
		}
		if c.Export.FlushRetries < 0 {
			problems = append(problems, "export.flush_retries must be >= 0")
		}
		if c.Export.MaxConcurrentSheets < 1 || c.Export.MaxConcurrentSheets > 32 {
			problems = append(problems, "export.max_concurrent_sheets must be between 1 and 32")
		}
		if c.Market.RatePerSecond < 0 {
			problems = append(problems, "market.rate_per_second must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Export.MaxConcurrentSheets < 1 || c.Export.MaxConcurrentSheets > 32 {
			problems = append(problems, "export.max_concurrent_sheets must be between 1 and 32")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
