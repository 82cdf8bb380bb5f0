// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio device settings.
	Capture   CaptureConfig   `yaml:"capture"`   // Signal conditioning applied before detection.
	Detector  DetectorConfig  `yaml:"detector"`  // Tick detector tuning.
	Transport TransportConfig `yaml:"transport"` // Progress/result publishing.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per block delivered to the detector.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	QueueDepth      int     `yaml:"queue_depth"`       // Blocks buffered between the audio callback and the detector.
}

// CaptureConfig holds the conditioning chain settings.
type CaptureConfig struct {
	Gain       float64 `yaml:"gain"`        // Linear gain applied after filtering.
	HighPassHz float64 `yaml:"highpass_hz"` // High-pass cutoff frequency in Hz.
	HighPassQ  float64 `yaml:"highpass_q"`  // High-pass resonance.
}

// DetectorConfig holds the operator-tunable parts of the tick detector.
type DetectorConfig struct {
	Threshold          float64       `yaml:"threshold"`            // Peak amplitude a block must exceed to register a tick.
	SessionSeconds     float64       `yaml:"session_seconds"`      // Length of one measurement.
	InitialMinInterval float64       `yaml:"initial_min_interval"` // Debounce spacing in seconds while detecting.
	ProgressInterval   time.Duration `yaml:"progress_interval"`    // Minimum audio time between progress reports.
}

// TransportConfig holds settings related to publishing progress and results.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast JSON messages to WebSocket clients.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary progress packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	NATSEnabled      bool          `yaml:"nats_enabled"`       // Publish JSON messages to NATS.
	NATSURL          string        `yaml:"nats_url"`           // NATS server URL.
	NATSSubject      string        `yaml:"nats_subject"`       // Subject prefix; ".progress" and ".result" are appended.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"timegrapher.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the capture pipeline or the
// detector cannot work with.
func (c *Config) Validate() error {
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d is below %d", ErrInvalid, a.InputDevice, MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d outside [1, %d]", ErrInvalid, a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.QueueDepth <= 0 {
		return fmt.Errorf("%w: audio.queue_depth must be positive", ErrInvalid)
	}

	cp := c.Capture
	if cp.Gain <= 0 {
		return fmt.Errorf("%w: capture.gain must be positive", ErrInvalid)
	}
	if cp.HighPassHz <= 0 || cp.HighPassHz >= a.SampleRate/2 {
		return fmt.Errorf("%w: capture.highpass_hz %.1f must be in (0, %.0f)", ErrInvalid, cp.HighPassHz, a.SampleRate/2)
	}
	if cp.HighPassQ <= 0 {
		return fmt.Errorf("%w: capture.highpass_q must be positive", ErrInvalid)
	}

	d := c.Detector
	if d.Threshold <= 0 || d.Threshold >= 1 || math.IsNaN(d.Threshold) {
		return fmt.Errorf("%w: detector.threshold %g must be in (0, 1)", ErrInvalid, d.Threshold)
	}
	if d.SessionSeconds < MinSessionSeconds {
		return fmt.Errorf("%w: detector.session_seconds must be at least %.0f", ErrInvalid, MinSessionSeconds)
	}
	if d.InitialMinInterval < 0 {
		return fmt.Errorf("%w: detector.initial_min_interval must not be negative", ErrInvalid)
	}
	if d.ProgressInterval <= 0 {
		return fmt.Errorf("%w: detector.progress_interval must be positive", ErrInvalid)
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddr == "" {
		return fmt.Errorf("%w: transport.websocket_addr must be set when WebSocket is enabled", ErrInvalid)
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("%w: transport.udp_target_address must be set when UDP is enabled", ErrInvalid)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalid)
		}
	}
	if t.NATSEnabled && (t.NATSURL == "" || t.NATSSubject == "") {
		return fmt.Errorf("%w: transport.nats_url and transport.nats_subject must be set when NATS is enabled", ErrInvalid)
	}

	return nil
}

// applyEnvOverrides reads ENV_* variables on top of the file (or default) values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}
	// ENV_DEVICE
	if val, ok := os.LookupEnv("ENV_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
		}
	}

	// ENV_WS_{...}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WebSocketAddr = val
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}

	// ENV_NATS_{...}
	if val, ok := os.LookupEnv("ENV_NATS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.NATSEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_NATS_URL"); ok {
		cfg.Transport.NATSURL = val
	}
}
