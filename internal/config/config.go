// ABOUTME: Configuration types, loading and validation
// ABOUTME: Sections for mixer, output, events, broker, HTTP and logging
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/protocol"
)

// SecretEnv names the environment variable holding the broker secret
const SecretEnv = "EVENT_SERVER_SECRET"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete configuration
type Config struct {
	Mixer   MixerConfig   `yaml:"mixer"`
	Output  OutputConfig  `yaml:"output"`
	Events  EventsConfig  `yaml:"events"`
	Broker  BrokerConfig  `yaml:"broker"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// MixerConfig contains mixing engine parameters
type MixerConfig struct {
	SampleRate     int  `yaml:"sample_rate"`
	Channels       int  `yaml:"channels"`
	FrameMs        int  `yaml:"frame_ms"`
	MaxBufferMs    int  `yaml:"max_buffer_ms"`
	DefaultFadeMs  int  `yaml:"default_fade_ms"`
	RemovalGraceMs int  `yaml:"removal_grace_ms"`
	KeepAlive      bool `yaml:"keep_alive"`
}

// OutputConfig selects where mixed frames go
type OutputConfig struct {
	Backend     string `yaml:"backend"` // oto, null or opus
	OpusBitrate int    `yaml:"opus_bitrate"`
	QueueFrames int    `yaml:"queue_frames"`
}

// EventsConfig contains event client settings
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddr  string `yaml:"server_addr"`
	Secret      string `yaml:"secret"`
	Name        string `yaml:"name"`
	ReconnectMs int    `yaml:"reconnect_ms"`
	Discover    bool   `yaml:"discover"`
}

// BrokerConfig contains event broker settings
type BrokerConfig struct {
	Port       int    `yaml:"port"`
	Secret     string `yaml:"secret"`
	Name       string `yaml:"name"`
	EnableMDNS bool   `yaml:"enable_mdns"`
	Debug      bool   `yaml:"debug"`
}

// HTTPConfig contains control API settings
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Mixer: MixerConfig{
			SampleRate:     audio.DefaultSampleRate,
			Channels:       audio.DefaultChannels,
			FrameMs:        20,
			MaxBufferMs:    2000,
			DefaultFadeMs:  2000,
			RemovalGraceMs: 100,
		},
		Output: OutputConfig{
			Backend:     "oto",
			OpusBitrate: 128000,
			QueueFrames: 50,
		},
		Events: EventsConfig{
			Enabled:     true,
			ServerAddr:  fmt.Sprintf("localhost:%d", protocol.DefaultPort),
			Name:        "mixbus",
			ReconnectMs: 1000,
		},
		Broker: BrokerConfig{
			Port: protocol.DefaultPort,
			Name: "mixbus-broker",
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			File: "mixbus.log",
		},
	}
}

// Load reads a YAML file over the defaults, applies the environment and
// validates the result
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv lets EVENT_SERVER_SECRET set both secrets
func (c *Config) ApplyEnv() {
	if secret, ok := os.LookupEnv(SecretEnv); ok {
		c.Events.Secret = secret
		c.Broker.Secret = secret
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Mixer.Validate(); err != nil {
		return fmt.Errorf("mixer config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate validates mixer configuration
func (m *MixerConfig) Validate() error {
	if m.SampleRate < 8000 || m.SampleRate > 192000 {
		return invalid("sample_rate must be between 8000 and 192000, got %d", m.SampleRate)
	}
	if m.Channels < 1 || m.Channels > 8 {
		return invalid("channels must be between 1 and 8, got %d", m.Channels)
	}
	if m.FrameMs < 5 || m.FrameMs > 200 {
		return invalid("frame_ms must be between 5 and 200, got %d", m.FrameMs)
	}
	if m.MaxBufferMs < m.FrameMs {
		return invalid("max_buffer_ms (%d) must be at least frame_ms (%d)", m.MaxBufferMs, m.FrameMs)
	}
	if m.DefaultFadeMs < 0 {
		return invalid("default_fade_ms cannot be negative, got %d", m.DefaultFadeMs)
	}
	if m.RemovalGraceMs < 0 {
		return invalid("removal_grace_ms cannot be negative, got %d", m.RemovalGraceMs)
	}
	return nil
}

// Format returns the PCM format
func (m *MixerConfig) Format() audio.Format {
	return audio.Format{SampleRate: m.SampleRate, Channels: m.Channels}
}

// FrameDuration returns frame_ms as a time.Duration
func (m *MixerConfig) FrameDuration() time.Duration {
	return time.Duration(m.FrameMs) * time.Millisecond
}

// MaxBuffer returns max_buffer_ms as a time.Duration
func (m *MixerConfig) MaxBuffer() time.Duration {
	return time.Duration(m.MaxBufferMs) * time.Millisecond
}

// DefaultFade returns default_fade_ms as a time.Duration
func (m *MixerConfig) DefaultFade() time.Duration {
	return time.Duration(m.DefaultFadeMs) * time.Millisecond
}

// RemovalGrace returns removal_grace_ms as a time.Duration
func (m *MixerConfig) RemovalGrace() time.Duration {
	return time.Duration(m.RemovalGraceMs) * time.Millisecond
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	switch o.Backend {
	case "oto", "null", "opus":
	default:
		return invalid("backend must be one of [oto, null, opus], got '%s'", o.Backend)
	}
	if o.Backend == "opus" && (o.OpusBitrate < 6000 || o.OpusBitrate > 510000) {
		return invalid("opus_bitrate must be between 6000 and 510000, got %d", o.OpusBitrate)
	}
	if o.QueueFrames < 1 {
		return invalid("queue_frames must be at least 1, got %d", o.QueueFrames)
	}
	return nil
}

// Validate validates event client configuration
func (e *EventsConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if e.ServerAddr == "" && !e.Discover {
		return invalid("server_addr cannot be empty unless discover is set")
	}
	if e.ReconnectMs < 10 {
		return invalid("reconnect_ms must be at least 10, got %d", e.ReconnectMs)
	}
	return nil
}

// ReconnectInterval returns reconnect_ms as a time.Duration
func (e *EventsConfig) ReconnectInterval() time.Duration {
	return time.Duration(e.ReconnectMs) * time.Millisecond
}

// Validate validates broker configuration
func (b *BrokerConfig) Validate() error {
	if b.Port < 1 || b.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", b.Port)
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return invalid("http port must be between 1 and 65535, got %d", h.Port)
		}
		if h.Address == "" {
			return invalid("http address cannot be empty when HTTP is enabled")
		}
	}
	return nil
}

// Addr returns address:port
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}
