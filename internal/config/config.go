package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"oracle-pricefeed/internal/logging"
	"oracle-pricefeed/internal/oracle"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the audit store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig covers the HTTP API surface.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig governs relay polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// RelayConfig captures the payload sources polled by the relayer.
type RelayConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// CommitteeKeyConfig seeds one committee public key at startup.
type CommitteeKeyConfig struct {
	CommitteeID uint64 `mapstructure:"committee_id"`
	PublicKey   string `mapstructure:"public_key"`
}

// HCCConfig tunes the historical consistency checker.
type HCCConfig struct {
	WindowSize int      `mapstructure:"window_size"`
	BandWidth  uint64   `mapstructure:"band_width"`
	Pairs      []uint32 `mapstructure:"pairs"`
}

// OracleConfig parameterises the verification pipeline.
type OracleConfig struct {
	ReplayWindow      int                  `mapstructure:"replay_window"`
	RoundToleranceMS  uint64               `mapstructure:"round_tolerance_ms"`
	Committees        []CommitteeKeyConfig `mapstructure:"committees"`
	AuthorizedCallers []string             `mapstructure:"authorized_callers"`
	HCC               HCCConfig            `mapstructure:"hcc"`
}

// AlertingConfig defines alert routing for consistency degradations.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oracle-pricefeed")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.listen_addr", ":8547")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("scheduler.interval", "30s")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6f726163))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("relay.request_timeout", "10s")
	v.SetDefault("relay.user_agent", "oracle-pricefeed/1.0")

	v.SetDefault("oracle.replay_window", 500)
	v.SetDefault("oracle.round_tolerance_ms", uint64(10_000))
	v.SetDefault("oracle.hcc.window_size", 50)
	v.SetDefault("oracle.hcc.band_width", uint64(3))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"log"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Oracle.ReplayWindow <= 0 {
		return fmt.Errorf("oracle.replay_window must be greater than zero")
	}
	if c.Oracle.HCC.WindowSize <= 0 {
		return fmt.Errorf("oracle.hcc.window_size must be greater than zero")
	}
	if c.Oracle.HCC.BandWidth == 0 {
		return fmt.Errorf("oracle.hcc.band_width must be greater than zero")
	}
	for i, key := range c.Oracle.Committees {
		raw, err := hexutil.Decode(key.PublicKey)
		if err != nil {
			return fmt.Errorf("oracle.committees[%d].public_key: %w", i, err)
		}
		if len(raw) != oracle.PublicKeySize {
			return fmt.Errorf("oracle.committees[%d].public_key must be %d bytes", i, oracle.PublicKeySize)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
