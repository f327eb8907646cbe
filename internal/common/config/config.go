package config

import (
	"os"
	"regexp"
	"time"

	"github.com/collabroom/relay/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// RelayServerConfig is the top-level configuration for the relay process
	RelayServerConfig struct {
		Port    int           `yaml:"port"`
		PID     string        `yaml:"pid"`
		Logger  LoggerConfig  `yaml:"logger"`
		Metrics MetricsConfig `yaml:"metrics"`
		Bus     BusConfig     `yaml:"bus"`
		Relay   RelayConfig   `yaml:"relay"`
	}

	// BusConfig selects and configures the cross-process message bus
	BusConfig struct {
		Type  string         `yaml:"type"`  // "memory" or "redis"
		Redis BusRedisConfig `yaml:"redis"` // Redis configuration
	}

	// BusRedisConfig is the Redis configuration for the pub/sub bus
	BusRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // "single", "sentinel" or "cluster"
		Addr        string `yaml:"addr"`
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
	}

	// RelayConfig holds the collaborative-session relay options
	RelayConfig struct {
		// ExcludeSender skips the originating connection during fan-out.
		// The source behavior echoes edits back to the sender, so this
		// defaults to false.
		ExcludeSender bool          `yaml:"exclude_sender"`
		TopicPrefix   string        `yaml:"topic_prefix"`
		TopicSuffix   string        `yaml:"topic_suffix"`
		SendTimeout   time.Duration `yaml:"send_timeout"`
		PingInterval  time.Duration `yaml:"ping_interval"`
		PongWait      time.Duration `yaml:"pong_wait"`
	}

	// MetricsConfig configures the prometheus endpoint
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}
)

// SetRelayDefaults fills in zero-valued relay options.
func SetRelayDefaults(cfg *RelayConfig) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "room:"
	}
	if cfg.TopicSuffix == "" {
		cfg.TopicSuffix = ":changes"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*RelayServerConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg RelayServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Bus.Type == "" {
		cfg.Bus.Type = "memory"
	}
	SetRelayDefaults(&cfg.Relay)

	return &cfg, cfgPath, nil
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
