package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address  string         `yaml:"address"`
	TLS      TLSConfig      `yaml:"tls"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Relay    RelayConfig    `yaml:"relay"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Auth     AuthConfig     `yaml:"auth"`
	Push     PushConfig     `yaml:"push"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig represents database settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // sqlite file path
	DSN  string `yaml:"dsn"`  // mysql connection string
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RelayConfig represents real-time relay settings for both websocket engines
type RelayConfig struct {
	// SweepIntervalMS is the presence liveness sweep period
	SweepIntervalMS int `yaml:"sweep_interval_ms"`
	// HeartbeatTimeoutMS is how long a child may stay silent before it is
	// flipped offline; must exceed the sweep interval
	HeartbeatTimeoutMS int `yaml:"heartbeat_timeout_ms"`
	// PresencePushOnRegister sends the full status map to a parent the
	// moment it registers on the presence engine
	PresencePushOnRegister bool `yaml:"presence_push_on_register"`
	// LocationPushOnRegister sends cached current samples to a parent the
	// moment it registers on the location engine
	LocationPushOnRegister bool `yaml:"location_push_on_register"`
}

// SMTPConfig represents verification mail settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// AuthConfig represents login token settings
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// PushConfig represents web push settings
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
}

// MetricsConfig represents Prometheus exposure settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":5000",
		TLS: TLSConfig{
			Enabled: false,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./childcompass.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			SweepIntervalMS:        1000,
			HeartbeatTimeoutMS:     8000,
			PresencePushOnRegister: true,
			LocationPushOnRegister: false,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Auth: AuthConfig{
			JWTSecret:     "",
			TokenTTLHours: 1,
		},
		Push: PushConfig{
			Subject: "mailto:admin@childcompass.app",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Address = ":" + port
	}
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if email := os.Getenv("EMAIL"); email != "" {
		config.SMTP.Username = email
		if config.SMTP.From == "" {
			config.SMTP.From = email
		}
	}
	if pass := os.Getenv("EMAIL_PASSWORD"); pass != "" {
		config.SMTP.Password = pass
	}
	if pub := os.Getenv("VAPID_PUBLIC_KEY"); pub != "" {
		config.Push.VAPIDPublicKey = pub
	}
	if priv := os.Getenv("VAPID_PRIVATE_KEY"); priv != "" {
		config.Push.VAPIDPrivateKey = priv
	}
	if timeout := os.Getenv("HEARTBEAT_TIMEOUT_MS"); timeout != "" {
		if v, err := strconv.Atoi(timeout); err == nil && v > 0 {
			config.Relay.HeartbeatTimeoutMS = v
		}
	}
	if sweep := os.Getenv("SWEEP_INTERVAL_MS"); sweep != "" {
		if v, err := strconv.Atoi(sweep); err == nil && v > 0 {
			config.Relay.SweepIntervalMS = v
		}
	}
}

// Validate checks configuration values
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn cannot be empty for mysql")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("cert_file and key_file required when TLS is enabled")
		}
	}

	if c.Relay.SweepIntervalMS <= 0 {
		return fmt.Errorf("sweep_interval_ms must be positive")
	}
	if c.Relay.HeartbeatTimeoutMS <= c.Relay.SweepIntervalMS {
		return fmt.Errorf("heartbeat_timeout_ms must exceed sweep_interval_ms")
	}

	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("token_ttl_hours must be positive")
	}

	return nil
}
