package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midi2wav/pkg/config"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("bank = \"gm.sf2\"\n\n[server]\nport = 9000\n"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantPort int
		wantBank string
		wantErr  bool
	}{
		{"defaults", nil, config.DefaultPort, "", false},
		{"file", []string{"--config", path}, 9000, "gm.sf2", false},
		{"flags over file", []string{"--config", path, "--port", "9100", "--bank", "other.sf2"}, 9100, "other.sf2", false},
		{"negative port", []string{"--port", "-1"}, 0, "", true},
		{"zero port", []string{"--config", path, "--port", "0"}, 0, "", true},
		{"port out of range", []string{"--port", "70000"}, 0, "", true},
		{"missing file", []string{"--config", filepath.Join(t.TempDir(), "nope.toml")}, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("server", flag.ContinueOnError)
			cfg, err := loadConfig(fs, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantBank, cfg.Bank)
		})
	}
}
