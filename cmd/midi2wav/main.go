// Package main is the entry point for midi2wav CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/james-see/midi2wav/pkg/api"
	"github.com/james-see/midi2wav/pkg/config"
	"github.com/james-see/midi2wav/pkg/converter"
	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/james-see/midi2wav/pkg/engine/soft"
	"github.com/james-see/midi2wav/pkg/log"
	"github.com/james-see/midi2wav/pkg/player"
	"github.com/james-see/midi2wav/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultConfigPath is read when present and --config is not given.
const defaultConfigPath = "midi2wav.toml"

// playPoll is the housekeeping interval while a file plays.
const playPoll = 10 * time.Millisecond

var (
	configPath string
	strict     bool
	reverb     string
	verbose    bool
	bankPath   string
	serverPort int
	logFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midi2wav <input.mid> <bank> <output.wav>",
	Short: "Render MIDI files to WAV through an instrument bank",
	Long: `midi2wav renders a standard MIDI file to a WAV file with a SoundFont
instrument bank, and plays MIDI or WAV files on the default output device.

Examples:
  midi2wav song.mid gm.sf2 song.wav
  midi2wav play song.mid --bank gm.sf2
  midi2wav tui
  midi2wav serve --port 8080`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE:         runConvert,
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a MIDI or WAV file until it ends",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (default ./"+defaultConfigPath+" when present)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Stop at the first failed engine call")
	rootCmd.PersistentFlags().StringVarP(&reverb, "reverb", "r", "", fmt.Sprintf("Reverb preset %v", engine.ReverbPresets()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every engine call")

	// play command
	playCmd.Flags().StringVarP(&bankPath, "bank", "b", "", "Instrument bank for MIDI files")

	// tui command
	tuiCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of discarding them")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config, 8080)")

	// Add commands
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// resolveConfig loads the config file and applies the command line on top.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, optional := configPath, false
	if path == "" {
		path, optional = defaultConfigPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("reverb") {
		cfg.Reverb = reverb
	}
	if verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	if flags.Lookup("bank") != nil && flags.Changed("bank") {
		cfg.Bank = bankPath
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithLevel(cfg.LogLevel)
	ctx, stop := signalContext(cmd)
	defer stop()

	req := converter.Request{MIDIPath: args[0], BankPath: args[1], WAVPath: args[2]}
	if f := converter.DetectFormat(req.MIDIPath); f != converter.FormatMIDI {
		logger.Warnf("%s does not look like a MIDI file (%s)", req.MIDIPath, f)
	}

	conv := converter.New(soft.Factory(soft.Options{Logger: logger}), converter.OptionsFromConfig(cfg))
	conv.SetLogger(logger)

	fmt.Printf("Rendering %s -> %s\n", req.MIDIPath, req.WAVPath)
	report, err := conv.Convert(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Render complete! %s, %d updates of %d frames at %d Hz\n",
		report.Length, report.Steps, report.BufferLength, report.SampleRate)
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithLevel(cfg.LogLevel)
	ctx, stop := signalContext(cmd)
	defer stop()

	session, err := player.New(soft.Factory(soft.Options{Logger: logger}),
		player.WithLogger(logger),
		player.WithStrict(cfg.Strict),
		player.WithMaxChannels(cfg.MaxChannels),
		player.WithLowPassGain(cfg.LowPassGain),
	)
	if session == nil {
		return err
	}
	defer func() { _ = session.Destroy() }()
	if err != nil && cfg.Strict {
		return err
	}

	session.SetInstrumentBank(cfg.Bank)
	if err := session.Play(args[0]); err != nil && (cfg.Strict || !session.IsPlaying()) {
		return err
	}
	return waitForPlayback(ctx, session)
}

// waitForPlayback keeps the engine updated until the sound ends or ctx is
// cancelled, in which case playback is stopped. Failed updates are logged by
// the session; the first one is returned.
func waitForPlayback(ctx context.Context, session *player.Session) error {
	ticker := time.NewTicker(playPoll)
	defer ticker.Stop()
	var first error
	for session.IsPlaying() {
		select {
		case <-ctx.Done():
			return errors.Join(first, session.Stop())
		case <-ticker.C:
			if err := session.Update(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.Discard()
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = log.WithLevel(cfg.LogLevel)
		logger.SetOutput(f)
	}
	return tui.Run(cfg, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("Starting API server on port %d...\n", cfg.Server.Port)
	return api.StartServer(cfg.Server.Port, cfg)
}
