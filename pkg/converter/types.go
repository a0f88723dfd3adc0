// Package converter renders MIDI files to WAV files through an audio engine
// running in non-real-time mode.
package converter

import (
	"errors"
	"time"

	"github.com/james-see/midi2wav/pkg/config"
	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRequest is returned when a Request misses a required path.
var ErrInvalidRequest = errors.New("invalid conversion request")

// Request names the files of one conversion. Paths are owned by the call.
type Request struct {
	MIDIPath string
	BankPath string
	WAVPath  string
}

// Report describes a finished render.
type Report struct {
	Output       string
	Length       time.Duration
	SampleRate   int
	BufferLength int
	// Frames is the sound length in output frames.
	Frames uint64
	// Steps is the number of mix updates performed.
	Steps int
}

// Options holds the fixed shaping and mixer settings of a render.
type Options struct {
	SampleRate  int
	SpeakerMode engine.SpeakerMode
	MaxChannels int
	// BufferLength and NumBuffers override the engine mix buffer when positive.
	BufferLength int
	NumBuffers   int
	LowPassGain  float32
	Volume       float32
	Reverb       engine.ReverbPreset
	// Strict stops a render at its first failed engine call.
	Strict bool
}

// DefaultOptions returns the render settings used by ConvertMIDIToWAV.
func DefaultOptions() Options {
	return Options{
		SampleRate:  44100,
		SpeakerMode: engine.SpeakerModeDefault,
		MaxChannels: engine.MaxChannels,
		LowPassGain: 0.6,
		Volume:      0.8,
		Reverb:      engine.ReverbAuditorium,
	}
}

// OptionsFromConfig returns the render settings described by cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SampleRate:   cfg.SampleRate,
		SpeakerMode:  engine.SpeakerModeDefault,
		MaxChannels:  cfg.MaxChannels,
		BufferLength: cfg.BufferLength,
		NumBuffers:   cfg.NumBuffers,
		LowPassGain:  cfg.LowPassGain,
		Volume:       cfg.Volume,
		Reverb:       cfg.ReverbPreset(),
		Strict:       cfg.Strict,
	}
}

// Converter renders MIDI files. It keeps no per-conversion state, so one
// Converter may serve concurrent calls as long as its factory does.
type Converter struct {
	factory engine.Factory
	opts    Options
	log     logrus.FieldLogger
}

// New creates a new Converter creating one engine per conversion through factory.
func New(factory engine.Factory, opts Options) *Converter {
	return &Converter{
		factory: factory,
		opts:    opts,
		log:     logrus.StandardLogger(),
	}
}

// SetLogger sets the logger engine failures are reported to.
func (c *Converter) SetLogger(l logrus.FieldLogger) {
	c.log = l
}

// Options returns the render settings.
func (c *Converter) Options() Options {
	return c.opts
}
