package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 32, cfg.MaxChannels)
	assert.Equal(t, float32(0.6), cfg.LowPassGain)
	assert.Equal(t, float32(0.8), cfg.Volume)
	assert.Equal(t, engine.ReverbAuditorium, cfg.ReverbPreset())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midi2wav.toml")
	data := `
sample_rate = 48000
reverb = "hall"
bank = "/banks/gm.sf2"
strict = true

[server]
port = 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, engine.ReverbHall, cfg.ReverbPreset())
	assert.Equal(t, "/banks/gm.sf2", cfg.Bank)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched keys keep their defaults
	assert.Equal(t, 1024, cfg.BufferLength)
}

func TestLoadMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero sample rate", "sample_rate = 0"},
		{"zero buffer", "buffer_length = 0"},
		{"gain out of range", "low_pass_gain = 1.5"},
		{"unknown reverb", `reverb = "cathedral"`},
		{"negative port", "[server]\nport = -1"},
		{"port out of range", "[server]\nport = 70000"},
		{"bad syntax", "sample_rate = "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))
			_, err := Load(path, false)
			assert.Error(t, err)
		})
	}
}
