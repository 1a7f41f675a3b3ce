// Package config loads courtwatch settings from an optional YAML file, COURTWATCH_*
// environment variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentworkforce/courtwatch/internal/ledger"
)

const (
	EnvPrefix   = "COURTWATCH"
	homeDirName = ".courtwatch"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Watch    WatchConfig    `mapstructure:"watch"`
	State    StateConfig    `mapstructure:"state"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type WatchConfig struct {
	Dir             string        `mapstructure:"dir" validate:"required,dir"`
	Marker          string        `mapstructure:"marker" validate:"required"`
	MinDuration     float64       `mapstructure:"min_duration" validate:"gte=0"`
	Debounce        time.Duration `mapstructure:"debounce" validate:"gte=0"`
	Fallback        string        `mapstructure:"fallback" validate:"oneof=cat syscall"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout" validate:"gt=0"`
}

type StateConfig struct {
	DSN         string `mapstructure:"dsn" validate:"required"`
	Capacity    int    `mapstructure:"capacity" validate:"gt=0"`
	ContextPath string `mapstructure:"context_path"`
}

type AnalysisConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type DeliveryConfig struct {
	Kind           string        `mapstructure:"kind" validate:"oneof=command websocket kafka"`
	Target         string        `mapstructure:"target" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	CommandPath    string        `mapstructure:"command_path" validate:"required_if=Kind command"`
	CommandArgs    []string      `mapstructure:"command_args"`
	WebSocketURL   string        `mapstructure:"websocket_url" validate:"required_if=Kind websocket,omitempty,url"`
	WebSocketToken string        `mapstructure:"websocket_token"`
	KafkaBrokers   []string      `mapstructure:"kafka_brokers" validate:"required_if=Kind kafka"`
	KafkaTopic     string        `mapstructure:"kafka_topic" validate:"required_if=Kind kafka"`
}

type AdminConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// HomeDir is where courtwatch keeps its state unless told otherwise.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return homeDirName
	}
	return filepath.Join(home, homeDirName)
}

// DefaultConfigFile is read when no --config is given and the file exists.
func DefaultConfigFile() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.marker", "网球")
	v.SetDefault("watch.min_duration", 180.0)
	v.SetDefault("watch.debounce", 2*time.Second)
	v.SetDefault("watch.fallback", "cat")
	v.SetDefault("watch.fallback_timeout", 10*time.Second)

	v.SetDefault("state.dsn", filepath.Join(HomeDir(), "state.json"))
	v.SetDefault("state.capacity", ledger.DefaultCapacity)
	v.SetDefault("state.context_path", "")

	v.SetDefault("analysis.base_url", "https://api.deepseek.com")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "deepseek-reasoner")
	v.SetDefault("analysis.temperature", 0.3)
	v.SetDefault("analysis.timeout", 90*time.Second)

	v.SetDefault("delivery.kind", "command")
	v.SetDefault("delivery.target", "")
	v.SetDefault("delivery.timeout", 60*time.Second)
	v.SetDefault("delivery.command_path", "openclaw")
	v.SetDefault("delivery.command_args", []string{})
	v.SetDefault("delivery.websocket_url", "")
	v.SetDefault("delivery.websocket_token", "")
	v.SetDefault("delivery.kafka_brokers", []string{})
	v.SetDefault("delivery.kafka_topic", "")

	v.SetDefault("admin.addr", "")
	v.SetDefault("admin.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadOptions controls where settings come from.
type LoadOptions struct {
	// ConfigFile must exist when set.
	ConfigFile string
	// Flags maps config keys such as "watch.dir" to command-line flags.
	Flags map[string]*pflag.Flag
}

// Load reads the configuration without validating it.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("analysis.api_key", EnvPrefix+"_ANALYSIS_API_KEY", "DEEPSEEK_API_KEY"); err != nil {
		return nil, err
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	configFile := strings.TrimSpace(opts.ConfigFile)
	if configFile == "" {
		if _, err := os.Stat(DefaultConfigFile()); err == nil {
			configFile = DefaultConfigFile()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ContextSnapshotPath returns the configured snapshot path, or one derived from the state
// location.
func (c *Config) ContextSnapshotPath() string {
	if path := strings.TrimSpace(c.State.ContextPath); path != "" {
		return path
	}
	dir := HomeDir()
	if statePath, ok := ledger.FilePath(c.State.DSN); ok && statePath != "" {
		dir = filepath.Dir(statePath)
	}
	return filepath.Join(dir, "context", "latest_match.json")
}
