// Package config loads midi2wav settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/james-see/midi2wav/pkg/engine"
)

// Default values mirror the fixed constants of the playback and render paths.
const (
	DefaultSampleRate   = 44100
	DefaultBufferLength = 1024
	DefaultNumBuffers   = 4
	DefaultLowPassGain  = 0.6
	DefaultVolume       = 0.8
	DefaultReverb       = "auditorium"
	DefaultPort         = 8080
)

// Config holds every tunable of the player, the converter and the server.
type Config struct {
	SampleRate   int     `toml:"sample_rate"`
	MaxChannels  int     `toml:"max_channels"`
	BufferLength int     `toml:"buffer_length"`
	NumBuffers   int     `toml:"num_buffers"`
	LowPassGain  float32 `toml:"low_pass_gain"`
	Volume       float32 `toml:"volume"`
	Reverb       string  `toml:"reverb"`
	Strict       bool    `toml:"strict"`
	// Bank is the default instrument bank for playback and rendering.
	Bank     string `toml:"bank"`
	LogLevel string `toml:"log_level"`

	Server Server `toml:"server"`
}

// Server configures the HTTP conversion service.
type Server struct {
	Port int `toml:"port"`
	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		MaxChannels:  engine.MaxChannels,
		BufferLength: DefaultBufferLength,
		NumBuffers:   DefaultNumBuffers,
		LowPassGain:  DefaultLowPassGain,
		Volume:       DefaultVolume,
		Reverb:       DefaultReverb,
		LogLevel:     "info",
		Server: Server{
			Port:           DefaultPort,
			MaxUploadBytes: 64 << 20,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.MaxChannels <= 0:
		return fmt.Errorf("max_channels must be positive, got %d", c.MaxChannels)
	case c.BufferLength <= 0:
		return fmt.Errorf("buffer_length must be positive, got %d", c.BufferLength)
	case c.NumBuffers <= 0:
		return fmt.Errorf("num_buffers must be positive, got %d", c.NumBuffers)
	case c.LowPassGain < 0 || c.LowPassGain > 1:
		return fmt.Errorf("low_pass_gain must be within [0, 1], got %g", c.LowPassGain)
	case c.Volume < 0:
		return fmt.Errorf("volume must not be negative, got %g", c.Volume)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server port must be within [1, 65535], got %d", c.Server.Port)
	}
	if _, err := engine.ParseReverbPreset(c.Reverb); err != nil {
		return err
	}
	return nil
}

// ReverbPreset returns the parsed reverb setting.
func (c Config) ReverbPreset() engine.ReverbPreset {
	p, _ := engine.ParseReverbPreset(c.Reverb)
	return p
}
