// =============================================================================
// staffline configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("STAFFLINE").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full staffline configuration tree.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Bot holds the conversational engine settings.
	Bot BotConfig `yaml:"bot" env:"BOT"`

	// Session holds session-store settings.
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Store holds row-store settings.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds OpenTelemetry settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the event API and metrics listeners.
type ServerConfig struct {
	// HTTP port for the event API
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics port for Prometheus scrapes
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Requests per second allowed per client
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Burst size allowed per client
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// BotConfig configures the workflow engine.
type BotConfig struct {
	// Active gates the whole bot. When false every inbound message gets a
	// fixed maintenance reply and nothing else runs. Defaults to true.
	Active bool `yaml:"active" env:"ACTIVE"`
	// CancelWord aborts the current workflow, case-insensitive.
	CancelWord string `yaml:"cancel_word" env:"CANCEL_WORD"`
	// Timezone is the IANA zone used for issued/audit timestamps.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
	// TurnTimeout bounds the external calls of one conversation turn.
	TurnTimeout time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
}

// SessionConfig configures the per-user session store.
type SessionConfig struct {
	// Backend type: memory, redis
	Type string `yaml:"type" env:"TYPE"`
	// Idle TTL after which an abandoned conversation is dropped
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Redis settings, used when type is redis
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig configures the redis client used by the redis session backend.
type RedisConfig struct {
	// Address host:port
	Addr string `yaml:"addr" env:"ADDR"`
	// Password, empty for none
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Minimum idle connections
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// StoreConfig configures the row store backing the employee tables.
type StoreConfig struct {
	// Backend type: memory, file, gorm
	Type string `yaml:"type" env:"TYPE"`
	// File settings, used when type is file
	File FileStoreConfig `yaml:"file" env:"FILE"`
	// Database settings, used when type is gorm
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
}

// FileStoreConfig configures the file-backed row store.
type FileStoreConfig struct {
	// Directory holding one JSON snapshot per table
	Dir string `yaml:"dir" env:"DIR"`
}

// DatabaseConfig configures the gorm-backed row store.
type DatabaseConfig struct {
	// Driver: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN in the driver's native format
	DSN string `yaml:"dsn" env:"DSN"`
	// Maximum open connections
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// Maximum idle connections
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// Connection lifetime
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Annotate entries with the calling site
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Attach stacktraces to error entries
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTel SDK.
type TelemetryConfig struct {
	// Enabled toggles exporter creation; off means noop providers
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP gRPC endpoint
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// Service name reported in resource attributes
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// Trace sample rate in [0,1]
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "STAFFLINE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a config validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds the configuration.
// Precedence: defaults → YAML file → environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile overlays values from the YAML file. A missing file is not an
// error; defaults stay in effect.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overlays values from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct tree setting fields from env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses one env string into a struct field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %q", value)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration is an int64 with its own syntax
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %q", value)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int: %q", value)
		}
		field.SetInt(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %q", value)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
