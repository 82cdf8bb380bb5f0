// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture pipeline and the tick detector.
const (
	// Audio device defaults.
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 2048        // ~46ms blocks at 44.1kHz
	DefaultLowLatency      = false       // Standard latency mode
	DefaultQueueDepth      = 16          // Blocks buffered between callback and detector

	// Signal conditioning. The high-pass removes handling rumble and mains hum,
	// the gain lifts quiet escapement clicks well above the detection threshold.
	DefaultGain       = 50.0
	DefaultHighPassHz = 200.0
	DefaultHighPassQ  = 0.7071 // Butterworth

	// Detector defaults.
	DefaultThreshold          = 0.00075                // Peak amplitude on a [-1,1] scale
	DefaultSessionSeconds     = 30.0                   // Fixed measurement length
	DefaultInitialMinInterval = 0.08                   // Debounce spacing before lock-on
	DefaultProgressInterval   = 100 * time.Millisecond // ~10Hz progress reports

	// Transport defaults.
	DefaultWebSocketAddr    = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 100 * time.Millisecond
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultNATSSubject      = "timegrapher"

	// Hardware and processing limits
	MinDeviceID       = -1     // -1 represents system default device
	MinSampleRate     = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate     = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames   = 8192   // Maximum frames per buffer
	MinSessionSeconds = 3.0    // Must leave room after the 2s lock-on warmup
)

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			QueueDepth:      DefaultQueueDepth,
		},
		Capture: CaptureConfig{
			Gain:       DefaultGain,
			HighPassHz: DefaultHighPassHz,
			HighPassQ:  DefaultHighPassQ,
		},
		Detector: DefaultDetectorConfig(),
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			NATSEnabled:      false,
			NATSURL:          DefaultNATSURL,
			NATSSubject:      DefaultNATSSubject,
		},
	}
}

// DefaultDetectorConfig returns the detector tuning used by a timegrapher session.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:          DefaultThreshold,
		SessionSeconds:     DefaultSessionSeconds,
		InitialMinInterval: DefaultInitialMinInterval,
		ProgressInterval:   DefaultProgressInterval,
	}
}
