// Package config loads and validates webconsole configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/webconsole/internal/console"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Progress ProgressConfig `mapstructure:"progress"`
	Relay    RelayConfig    `mapstructure:"relay"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StreamConfig tunes the live flush pipeline. A MinMessageLength of zero
// turns padding off.
type StreamConfig struct {
	FlushWindow      time.Duration `mapstructure:"flush_window"`
	MaxBatchEvents   int           `mapstructure:"max_batch_events"`
	BufferSize       int           `mapstructure:"buffer_size"`
	MinMessageLength int           `mapstructure:"min_message_length"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// ProgressConfig controls subtask heartbeats.
type ProgressConfig struct {
	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
}

// RelayConfig names remote streams this server can relay. Viper lowercases
// map keys, so remote names are case-insensitive.
type RelayConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	Remotes     map[string]string `mapstructure:"remotes"`
	SignalTopic string            `mapstructure:"signal_topic"`
	APIKey      string            `mapstructure:"api_key"`
}

// PubSubConfig selects where relay signals are published. An empty project
// keeps them in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// DemoConfig paces the built-in demonstration operations.
type DemoConfig struct {
	StepDelay     time.Duration `mapstructure:"step_delay"`
	FanoutJobs    int           `mapstructure:"fanout_jobs"`
	FanoutWorkers int           `mapstructure:"fanout_workers"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("stream.flush_window", 500*time.Millisecond)
	v.SetDefault("stream.max_batch_events", 1000)
	v.SetDefault("stream.buffer_size", 4096)
	v.SetDefault("stream.min_message_length", 128)
	v.SetDefault("stream.write_timeout", 10*time.Second)
	v.SetDefault("progress.heartbeat_period", 2*time.Second)
	v.SetDefault("relay.timeout", 0)
	v.SetDefault("relay.signal_topic", "webconsole-signals")
	v.SetDefault("demo.step_delay", 10*time.Millisecond)
	v.SetDefault("demo.fanout_jobs", 4)
	v.SetDefault("demo.fanout_workers", 2)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return invalid("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return invalid("auth.api_key must be set when auth is enabled")
	}
	if c.Stream.FlushWindow <= 0 {
		return invalid("stream.flush_window must be > 0")
	}
	if c.Stream.MaxBatchEvents <= 0 {
		return invalid("stream.max_batch_events must be > 0")
	}
	if c.Stream.BufferSize <= 0 {
		return invalid("stream.buffer_size must be > 0")
	}
	if c.Stream.MinMessageLength < 0 {
		return invalid("stream.min_message_length must be >= 0")
	}
	if c.Progress.HeartbeatPeriod < 0 {
		return invalid("progress.heartbeat_period must be >= 0")
	}
	if c.Relay.Timeout < 0 {
		return invalid("relay.timeout must be >= 0")
	}
	for name, raw := range c.Relay.Remotes {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid(fmt.Sprintf("relay.remotes.%s must be an absolute http(s) URL", name))
		}
	}
	if c.Demo.FanoutJobs <= 0 || c.Demo.FanoutWorkers <= 0 {
		return invalid("demo.fanout_jobs and demo.fanout_workers must be > 0")
	}
	return nil
}

// PaddingDisabled reports whether short batches go out unpadded.
func (c Config) PaddingDisabled() bool {
	return c.Stream.MinMessageLength == 0
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", console.ErrConfiguration, msg)
}
