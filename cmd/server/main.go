// Package main is the entry point for the midi2wav API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/midi2wav/pkg/api"
	"github.com/james-see/midi2wav/pkg/config"
)

func main() {
	cfg, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting midi2wav API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.StartServer(cfg.Server.Port, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig parses args into fs, reads the config file and applies the
// flags that were given on top of it.
func loadConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	configPath := fs.String("config", "", "Path to a TOML config file")
	port := fs.Int("port", 0, "Server port (overrides the config file)")
	bank := fs.String("bank", "", "Default instrument bank (overrides the config file)")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath, false)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "bank":
			cfg.Bank = *bank
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
