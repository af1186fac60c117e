// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Portal     PortalConfig     `mapstructure:"portal" yaml:"portal"`
	Oracle     OracleConfig     `mapstructure:"oracle" yaml:"oracle"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig controls the websocket/HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrowserConfig controls the Chrome allocator shared by all sessions.
type BrowserConfig struct {
	Headless   bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath   string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args       []string `mapstructure:"args" yaml:"args"`
}

// PortalConfig pins the target portal and the workflow timing knobs.
type PortalConfig struct {
	URL                string        `mapstructure:"url" yaml:"url"`
	StepTimeout        time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DownloadSettleWait time.Duration `mapstructure:"download_settle_wait" yaml:"download_settle_wait"`
}

// OracleConfig controls the intent-extraction LLM client.
type OracleConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  uint64        `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
}

// CheckpointConfig controls the human-in-the-loop bridge.
type CheckpointConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// setDefaults registers every configuration default with viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "eid-agent")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)

	v.SetDefault("portal.url", "https://profound-conkies-c25ade.netlify.app/#")
	v.SetDefault("portal.step_timeout", 10*time.Second)
	v.SetDefault("portal.navigation_timeout", 30*time.Second)
	v.SetDefault("portal.download_settle_wait", 2*time.Second)

	v.SetDefault("oracle.model", "gemini-2.0-flash")
	v.SetDefault("oracle.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.temperature", 0.1)

	v.SetDefault("checkpoint.timeout", 120*time.Second)
}

// Load reads configuration from the optional file path, the environment
// (EIDAGENT_ prefix), and built-in defaults, in that order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("EIDAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AutomaticEnv does not feed Unmarshal for keys absent from the file,
	// so pull the secret explicitly (EIDAGENT_ORACLE_API_KEY).
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = v.GetString("oracle.api_key")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Portal.URL == "" {
		return fmt.Errorf("portal.url must not be empty")
	}
	if c.Portal.StepTimeout <= 0 {
		return fmt.Errorf("portal.step_timeout must be positive")
	}
	if c.Checkpoint.Timeout <= 0 {
		return fmt.Errorf("checkpoint.timeout must be positive")
	}
	return nil
}
