package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var current atomic.Pointer[Config]

// Current returns the most recently loaded configuration, or nil before Init.
func Current() *Config {
	return current.Load()
}

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port" validate:"required"`
	SessionSecret string        `mapstructure:"session_secret" validate:"required,min=16"`
	TickRate      time.Duration `mapstructure:"tick_rate" validate:"gt=0"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN is the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory" validate:"required"`
	MaxSize    int    `mapstructure:"max_size" validate:"gt=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// TelemetryConfig selects where per-trial records are forwarded.
type TelemetryConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=http nats redis none"`
	Endpoint       string        `mapstructure:"endpoint" validate:"required_if=Driver http"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Buffer         int64         `mapstructure:"buffer" validate:"gte=0"`
	NATSURL        string        `mapstructure:"nats_url" validate:"required_if=Driver nats"`
	NATSSubject    string        `mapstructure:"nats_subject"`
	RedisAddr      string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisKeyPrefix string        `mapstructure:"redis_key_prefix"`
}

// ExperimentConfig points at the protocol file.
type ExperimentConfig struct {
	ProtocolPath string `mapstructure:"protocol_path" validate:"required"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me-change-me")
	v.SetDefault("server.tick_rate", 16667*time.Microsecond) // ~60 Hz
	v.SetDefault("server.session_ttl", 2*time.Hour)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "rtexp-db")
	v.SetDefault("database.sslmode", "disable")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs
	v.SetDefault("logging.level", "info")

	// Telemetry defaults
	v.SetDefault("telemetry.driver", "http")
	v.SetDefault("telemetry.endpoint", "http://localhost:5050/telemetry")
	v.SetDefault("telemetry.timeout", 5*time.Second)
	v.SetDefault("telemetry.buffer", 256)
	v.SetDefault("telemetry.nats_url", "")
	v.SetDefault("telemetry.nats_subject", "telemetry.trials")
	v.SetDefault("telemetry.redis_addr", "")
	v.SetDefault("telemetry.redis_password", "")
	v.SetDefault("telemetry.redis_db", 0)
	v.SetDefault("telemetry.redis_key_prefix", "rtexp:trials:")

	// Experiment defaults
	v.SetDefault("experiment.protocol_path", "config/protocol.yaml")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads config/config.yaml under projectRoot, overlays RTEXP_*
// environment variables and validates the result. A missing file is fine.
func Load(projectRoot string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("RTEXP") // e.g., RTEXP_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	conf, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return conf, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &conf, nil
}

// Init loads the configuration, publishes it through Current and reloads it
// when the file changes. Running sessions keep the protocol they started
// with; only new sessions see reloaded values.
func Init(projectRoot string, log *zap.Logger) (*Config, error) {
	conf, v, err := Load(projectRoot)
	if err != nil {
		return nil, err
	}
	current.Store(conf)

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		reloaded, err := decode(v)
		if err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		current.Store(reloaded)
	})
	v.WatchConfig()

	log.Info("Configuration loaded successfully", zap.String("file", v.ConfigFileUsed()))
	return conf, nil
}
