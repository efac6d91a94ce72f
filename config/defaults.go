// =============================================================================
// staffline default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Bot:       DefaultBotConfig(),
		Session:   DefaultSessionConfig(),
		Store:     DefaultStoreConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultBotConfig returns the default engine settings.
// The bot is active unless explicitly disabled.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Active:      true,
		CancelWord:  "cancel",
		Timezone:    "Asia/Bangkok",
		TurnTimeout: 30 * time.Second,
	}
}

// DefaultSessionConfig returns the default session-store settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Type: "memory",
		TTL:  30 * time.Minute,
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			Password:     "",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
	}
}

// DefaultStoreConfig returns the default row-store settings.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: "memory",
		File: FileStoreConfig{
			Dir: "data",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "staffline.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "staffline",
		SampleRate:   0.1,
	}
}
