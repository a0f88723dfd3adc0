// Package engine defines the capability interface of the audio engine used for
// playback and offline MIDI rendering.
package engine

// HeaderVersion is the engine interface version this module is built against.
// Engines reporting an older library version still work but are warned about.
const HeaderVersion uint32 = 0x00020100

// MaxChannels is the concurrent channel budget used when initializing an engine.
const MaxChannels = 32

// OutputType selects where an engine sends its mix.
type OutputType int

const (
	// OutputAuto picks the default real-time output device.
	OutputAuto OutputType = iota
	// OutputNoSound mixes and discards the result.
	OutputNoSound
	// OutputWavWriterNRT writes the mix to a WAV file, one buffer per Update.
	OutputWavWriterNRT
)

func (o OutputType) String() string {
	switch o {
	case OutputAuto:
		return "auto"
	case OutputNoSound:
		return "nosound"
	case OutputWavWriterNRT:
		return "wavwriter_nrt"
	default:
		return "unknown"
	}
}

// InitFlags controls how an engine drives its mixer.
type InitFlags int

const (
	// InitNormal mixes in real time.
	InitNormal InitFlags = 0
	// InitStreamFromUpdate mixes only when Update is called.
	InitStreamFromUpdate InitFlags = 1
)

func (f InitFlags) String() string {
	if f&InitStreamFromUpdate != 0 {
		return "stream_from_update"
	}
	return "normal"
}

// SpeakerMode is the mixer channel layout.
type SpeakerMode int

const (
	SpeakerModeDefault SpeakerMode = iota
	SpeakerModeMono
	SpeakerModeStereo
)

// NumChannels returns the number of output channels for the layout.
func (m SpeakerMode) NumChannels() int {
	if m == SpeakerModeMono {
		return 1
	}
	return 2
}

// TimeUnit selects the unit of Sound.Length.
type TimeUnit int

const (
	// TimeUnitMS is milliseconds.
	TimeUnitMS TimeUnit = iota
	// TimeUnitPCM is sample frames at the sound's own rate.
	TimeUnitPCM
)

// CreateSoundInfo carries optional parameters for CreateSound.
type CreateSoundInfo struct {
	// BankPath is the instrument bank used to render MIDI. Empty means none.
	BankPath string
}

// System is one engine instance. It owns every Sound and Channel it creates;
// releasing it invalidates them.
type System interface {
	Version() (uint32, error)
	NumDrivers() (int, error)
	SetOutput(out OutputType) error
	SetSoftwareFormat(sampleRate int, mode SpeakerMode) error
	SoftwareFormat() (sampleRate int, mode SpeakerMode, err error)
	SetDSPBufferSize(length, numBuffers int) error
	DSPBufferSize() (length, numBuffers int, err error)
	// Init starts the engine. extra is the output file path for OutputWavWriterNRT.
	Init(maxChannels int, flags InitFlags, extra string) error
	CreateSound(path string, info *CreateSoundInfo) (Sound, error)
	PlaySound(s Sound, paused bool) (Channel, error)
	SetReverbPreset(p ReverbPreset) error
	// Update advances the engine by one mix buffer when initialized with
	// InitStreamFromUpdate, and performs housekeeping otherwise.
	Update() error
	Close() error
	Release() error
}

// Sound is one loaded audio or MIDI asset.
type Sound interface {
	Length(unit TimeUnit) (uint32, error)
	Release() error
}

// Channel is one active playback of a Sound.
type Channel interface {
	SetLowPassGain(gain float32) error
	SetVolume(volume float32) error
	SetPaused(paused bool) error
	IsPlaying() (bool, error)
	Stop() error
}

// Factory creates a new, uninitialized System.
type Factory func() (System, error)
