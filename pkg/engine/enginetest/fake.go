// Package enginetest provides a scripted engine.System that records every call,
// for testing code written against the engine capability interface.
package enginetest

import (
	"sync"

	"github.com/james-see/midi2wav/pkg/engine"
)

// Fake is an in-memory engine. Configure its exported fields before handing
// Factory to the code under test, then inspect Calls and the created handles.
type Fake struct {
	mu sync.Mutex

	LibVersion    uint32
	Drivers       int
	SampleRate    int
	SpeakerMode   engine.SpeakerMode
	BufferLength  int
	NumBuffers    int
	SoundLengthMS uint32
	// SoundLengthPCM is reported for TimeUnitPCM; zero derives it from
	// SoundLengthMS and SampleRate.
	SoundLengthPCM uint32
	// PinFormat makes SetSoftwareFormat a no-op so SoftwareFormat keeps
	// reporting the configured SampleRate.
	PinFormat bool
	// Fail maps an operation name to the code it fails with.
	Fail map[string]engine.Result

	Calls    []string
	Sounds   []*Sound
	Channels []*Channel

	Output      engine.OutputType
	InitMax     int
	InitFlags   engine.InitFlags
	InitExtra   string
	Reverb      engine.ReverbPreset
	Updates     int
	initialized bool
	closed      bool
	released    bool
}

// New returns a Fake describing a healthy engine with one output driver.
func New() *Fake {
	return &Fake{
		LibVersion:    engine.HeaderVersion,
		Drivers:       1,
		SampleRate:    48000,
		SpeakerMode:   engine.SpeakerModeStereo,
		BufferLength:  1024,
		NumBuffers:    4,
		SoundLengthMS: 1000,
		Fail:          map[string]engine.Result{},
	}
}

// Factory returns an engine.Factory handing out this Fake.
func (f *Fake) Factory() engine.Factory {
	return func() (engine.System, error) {
		if err := f.record("System.Create"); err != nil {
			return nil, err
		}
		return f, nil
	}
}

// Failing returns a factory that always fails with err.
func Failing(err error) engine.Factory {
	return func() (engine.System, error) {
		return nil, err
	}
}

// CallsSnapshot returns a copy of the recorded call names.
func (f *Fake) CallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// Count returns how many times op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// Released reports whether Release was called on the system.
func (f *Fake) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordLocked(op)
}

func (f *Fake) recordLocked(op string) error {
	f.Calls = append(f.Calls, op)
	if code, ok := f.Fail[op]; ok && code != engine.ResultOK {
		return code
	}
	if f.released && op != "System.Create" {
		return engine.ResultInvalidHandle
	}
	return nil
}

func (f *Fake) Version() (uint32, error) {
	if err := f.record("System.Version"); err != nil {
		return 0, err
	}
	return f.LibVersion, nil
}

func (f *Fake) NumDrivers() (int, error) {
	if err := f.record("System.NumDrivers"); err != nil {
		return 0, err
	}
	return f.Drivers, nil
}

func (f *Fake) SetOutput(out engine.OutputType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.SetOutput"); err != nil {
		return err
	}
	if f.initialized {
		return engine.ResultInitialized
	}
	f.Output = out
	return nil
}

func (f *Fake) SetSoftwareFormat(sampleRate int, mode engine.SpeakerMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.SetSoftwareFormat"); err != nil {
		return err
	}
	if !f.PinFormat {
		f.SampleRate = sampleRate
		f.SpeakerMode = mode
	}
	return nil
}

func (f *Fake) SoftwareFormat() (int, engine.SpeakerMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.SoftwareFormat"); err != nil {
		return 0, engine.SpeakerModeDefault, err
	}
	return f.SampleRate, f.SpeakerMode, nil
}

func (f *Fake) SetDSPBufferSize(length, numBuffers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.SetDSPBufferSize"); err != nil {
		return err
	}
	f.BufferLength = length
	f.NumBuffers = numBuffers
	return nil
}

func (f *Fake) DSPBufferSize() (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.DSPBufferSize"); err != nil {
		return 0, 0, err
	}
	return f.BufferLength, f.NumBuffers, nil
}

func (f *Fake) Init(maxChannels int, flags engine.InitFlags, extra string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.Init"); err != nil {
		return err
	}
	f.InitMax = maxChannels
	f.InitFlags = flags
	f.InitExtra = extra
	f.initialized = true
	return nil
}

func (f *Fake) CreateSound(path string, info *engine.CreateSoundInfo) (engine.Sound, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.CreateSound"); err != nil {
		return nil, err
	}
	s := &Sound{fake: f, Path: path}
	if info != nil {
		s.Bank = info.BankPath
	}
	f.Sounds = append(f.Sounds, s)
	return s, nil
}

func (f *Fake) PlaySound(snd engine.Sound, paused bool) (engine.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.PlaySound"); err != nil {
		return nil, err
	}
	s, ok := snd.(*Sound)
	if !ok || s == nil || s.released {
		return nil, engine.ResultInvalidHandle
	}
	ch := &Channel{fake: f, Sound: s, Paused: paused}
	f.Channels = append(f.Channels, ch)
	return ch, nil
}

func (f *Fake) SetReverbPreset(p engine.ReverbPreset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.SetReverbPreset"); err != nil {
		return err
	}
	f.Reverb = p
	return nil
}

func (f *Fake) Update() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.Update"); err != nil {
		return err
	}
	f.Updates++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.Close"); err != nil {
		return err
	}
	f.closed = true
	f.initialized = false
	return nil
}

func (f *Fake) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("System.Release"); err != nil {
		return err
	}
	f.released = true
	for _, s := range f.Sounds {
		s.released = true
	}
	return nil
}

// Sound is a Fake sound handle.
type Sound struct {
	fake     *Fake
	Path     string
	Bank     string
	released bool
}

// IsReleased reports whether the sound was released.
func (s *Sound) IsReleased() bool {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	return s.released
}

func (s *Sound) Length(unit engine.TimeUnit) (uint32, error) {
	f := s.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Sound.Length"); err != nil {
		return 0, err
	}
	if s.released {
		return 0, engine.ResultInvalidHandle
	}
	if unit == engine.TimeUnitPCM {
		if f.SoundLengthPCM != 0 {
			return f.SoundLengthPCM, nil
		}
		return uint32(uint64(f.SoundLengthMS) * uint64(f.SampleRate) / 1000), nil
	}
	return f.SoundLengthMS, nil
}

func (s *Sound) Release() error {
	f := s.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Sound.Release"); err != nil {
		return err
	}
	if s.released {
		return engine.ResultInvalidHandle
	}
	s.released = true
	return nil
}

// Channel is a Fake channel handle.
type Channel struct {
	fake         *Fake
	Sound        *Sound
	Paused       bool
	Stopped      bool
	LowPassGains []float32
	Volumes      []float32
}

func (c *Channel) valid() error {
	if c.Sound.released || c.Stopped {
		return engine.ResultInvalidHandle
	}
	return nil
}

func (c *Channel) SetLowPassGain(gain float32) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Channel.SetLowPassGain"); err != nil {
		return err
	}
	if err := c.valid(); err != nil {
		return err
	}
	c.LowPassGains = append(c.LowPassGains, gain)
	return nil
}

func (c *Channel) SetVolume(volume float32) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Channel.SetVolume"); err != nil {
		return err
	}
	if err := c.valid(); err != nil {
		return err
	}
	c.Volumes = append(c.Volumes, volume)
	return nil
}

func (c *Channel) SetPaused(paused bool) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Channel.SetPaused"); err != nil {
		return err
	}
	if err := c.valid(); err != nil {
		return err
	}
	c.Paused = paused
	return nil
}

func (c *Channel) IsPlaying() (bool, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Channel.IsPlaying"); err != nil {
		return false, err
	}
	if err := c.valid(); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Channel) Stop() error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked("Channel.Stop"); err != nil {
		return err
	}
	if err := c.valid(); err != nil {
		return err
	}
	c.Stopped = true
	return nil
}

var (
	_ engine.System  = (*Fake)(nil)
	_ engine.Sound   = (*Sound)(nil)
	_ engine.Channel = (*Channel)(nil)
)
