// Package soft is a software implementation of the engine capability
// interface. WAV files are decoded with go-audio, MIDI files are rendered
// through go-meltysynth from a SoundFont bank, and the mix goes either to the
// default portaudio device, to a WAV file one buffer per Update, or nowhere.
package soft

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/james-see/midi2wav/pkg/engine"
)

// Version is the library version reported by System.Version.
const Version uint32 = engine.HeaderVersion

const (
	defaultSampleRate   = 48000
	defaultBufferLength = 1024
	defaultNumBuffers   = 4
	minSampleRate       = 8000
	maxSampleRate       = 192000
)

// Options configures systems built by Factory.
type Options struct {
	// Logger receives debug output. Nil discards it.
	Logger logrus.FieldLogger
	// Drivers overrides output device enumeration.
	Drivers func() (int, error)
}

// Factory returns an engine.Factory creating soft systems.
func Factory(opts Options) engine.Factory {
	return func() (engine.System, error) {
		return New(opts), nil
	}
}

type state int

const (
	stateCreated state = iota
	stateInitialized
	stateReleased
)

// System is one soft engine instance. All of its methods, and those of the
// sounds and channels it creates, are safe for concurrent use.
type System struct {
	mu sync.Mutex

	opts  Options
	log   logrus.FieldLogger
	state state

	output       engine.OutputType
	sampleRate   int
	speakerMode  engine.SpeakerMode
	bufferLength int
	numBuffers   int
	flags        engine.InitFlags
	maxChannels  int
	reverb       engine.ReverbPreset

	sink     sink
	banks    bankCache
	sounds   map[*Sound]struct{}
	channels []*Channel

	mixLeft, mixRight []float32
}

// New returns an uninitialized System.
func New(opts Options) *System {
	l := opts.Logger
	if l == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		l = quiet
	}
	if opts.Drivers == nil {
		opts.Drivers = outputDevices
	}
	return &System{
		opts:         opts,
		log:          l.WithField("component", "soft"),
		sampleRate:   defaultSampleRate,
		bufferLength: defaultBufferLength,
		numBuffers:   defaultNumBuffers,
		banks:        bankCache{},
		sounds:       map[*Sound]struct{}{},
	}
}

func (s *System) Version() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateReleased {
		return 0, engine.ResultInvalidHandle
	}
	return Version, nil
}

func (s *System) NumDrivers() (int, error) {
	s.mu.Lock()
	released := s.state == stateReleased
	s.mu.Unlock()
	if released {
		return 0, engine.ResultInvalidHandle
	}
	n, err := s.opts.Drivers()
	if err != nil {
		s.log.Debugf("device enumeration failed: %v", err)
		return 0, engine.ResultOutputDriverCall
	}
	return n, nil
}

// preInit checks that a setting may still change.
func (s *System) preInit() error {
	switch s.state {
	case stateReleased:
		return engine.ResultInvalidHandle
	case stateInitialized:
		return engine.ResultInitialized
	}
	return nil
}

func (s *System) SetOutput(out engine.OutputType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.preInit(); err != nil {
		return err
	}
	switch out {
	case engine.OutputAuto, engine.OutputNoSound, engine.OutputWavWriterNRT:
		s.output = out
		return nil
	}
	return engine.ResultInvalidParam
}

func (s *System) SetSoftwareFormat(sampleRate int, mode engine.SpeakerMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.preInit(); err != nil {
		return err
	}
	if sampleRate < minSampleRate || sampleRate > maxSampleRate {
		return engine.ResultInvalidParam
	}
	s.sampleRate = sampleRate
	s.speakerMode = mode
	return nil
}

func (s *System) SoftwareFormat() (int, engine.SpeakerMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateReleased {
		return 0, engine.SpeakerModeDefault, engine.ResultInvalidHandle
	}
	return s.sampleRate, s.speakerMode, nil
}

func (s *System) SetDSPBufferSize(length, numBuffers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.preInit(); err != nil {
		return err
	}
	if length <= 0 || numBuffers <= 0 {
		return engine.ResultInvalidParam
	}
	s.bufferLength = length
	s.numBuffers = numBuffers
	return nil
}

func (s *System) DSPBufferSize() (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateReleased {
		return 0, 0, engine.ResultInvalidHandle
	}
	return s.bufferLength, s.numBuffers, nil
}

// Init opens the output. For OutputWavWriterNRT extra is the file path.
func (s *System) Init(maxChannels int, flags engine.InitFlags, extra string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.preInit(); err != nil {
		return err
	}
	if maxChannels <= 0 {
		return engine.ResultInvalidParam
	}

	numChannels := s.speakerMode.NumChannels()
	switch s.output {
	case engine.OutputNoSound:
		s.sink = discard{}
	case engine.OutputWavWriterNRT:
		if extra == "" {
			return engine.ResultInvalidParam
		}
		w, err := newWavWriter(extra, s.sampleRate, numChannels)
		if err != nil {
			s.log.Debugf("wav writer: %v", err)
			return engine.ResultOutputInit
		}
		s.sink = w
	default:
		if flags&engine.InitStreamFromUpdate != 0 {
			return engine.ResultUnsupported
		}
		d, err := openDevice(s.sampleRate, numChannels, s.bufferLength, s.fill(numChannels))
		if err != nil {
			s.log.Debugf("portaudio: %v", err)
			return engine.ResultOutputInit
		}
		s.sink = d
	}

	s.maxChannels = maxChannels
	s.flags = flags
	s.mixLeft = make([]float32, s.bufferLength)
	s.mixRight = make([]float32, s.bufferLength)
	s.state = stateInitialized
	s.log.WithFields(logrus.Fields{
		"output":      s.output.String(),
		"sample_rate": s.sampleRate,
		"buffer":      s.bufferLength,
	}).Debug("engine initialized")
	return nil
}

// fill returns the portaudio callback mixing straight into the device buffer.
func (s *System) fill(numChannels int) func(out []float32) {
	return func(out []float32) {
		s.mu.Lock()
		defer s.mu.Unlock()
		frames := len(out) / numChannels
		left, right := s.mixLocked(frames)
		for i := 0; i < frames; i++ {
			if numChannels == 1 {
				out[i] = (left[i] + right[i]) / 2
				continue
			}
			out[i*2] = left[i]
			out[i*2+1] = right[i]
		}
	}
}

// mixLocked renders frames of every live channel into the mix buffers.
func (s *System) mixLocked(frames int) ([]float32, []float32) {
	if cap(s.mixLeft) < frames {
		s.mixLeft = make([]float32, frames)
		s.mixRight = make([]float32, frames)
	}
	left := s.mixLeft[:frames]
	right := s.mixRight[:frames]
	for i := range left {
		left[i], right[i] = 0, 0
	}
	if s.state != stateInitialized {
		return left, right
	}
	for _, c := range s.channels {
		c.mix(left, right)
	}
	return left, right
}

func (s *System) CreateSound(path string, info *engine.CreateSoundInfo) (engine.Sound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateReleased:
		return nil, engine.ResultInvalidHandle
	case stateCreated:
		return nil, engine.ResultUninitialized
	}
	snd, err := s.loadSound(path, info)
	if err != nil {
		return nil, err
	}
	s.sounds[snd] = struct{}{}
	s.log.WithField("path", path).Debug("sound created")
	return snd, nil
}

func (s *System) PlaySound(es engine.Sound, paused bool) (engine.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateReleased:
		return nil, engine.ResultInvalidHandle
	case stateCreated:
		return nil, engine.ResultUninitialized
	}
	snd, ok := es.(*Sound)
	if !ok || snd == nil || snd.sys != s || snd.released {
		return nil, engine.ResultInvalidHandle
	}

	c := &Channel{
		sys:         s,
		sound:       snd,
		lowPassGain: 1,
		volume:      1,
		paused:      paused,
	}
	switch snd.kind {
	case kindMIDI:
		v, err := newSynthVoice(snd, s.sampleRate, s.reverb)
		if err != nil {
			s.log.Debugf("synthesizer: %v", err)
			return nil, engine.ResultInternal
		}
		c.voice = v
	default:
		c.voice = newPCMVoice(snd)
	}

	if len(s.channels) >= s.maxChannels {
		s.log.Debug("channel budget exhausted, stealing oldest channel")
		s.removeChannelLocked(s.channels[0])
	}
	s.channels = append(s.channels, c)
	return c, nil
}

// SetReverbPreset sets the global reverb. Live MIDI channels pick it up at once.
func (s *System) SetReverbPreset(p engine.ReverbPreset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateReleased {
		return engine.ResultInvalidHandle
	}
	if p < engine.ReverbOff || p > engine.ReverbHangar {
		return engine.ResultInvalidParam
	}
	s.reverb = p
	for _, c := range s.channels {
		if v, ok := c.voice.(*synthVoice); ok {
			v.setReverb(p)
		}
	}
	return nil
}

// Update mixes one buffer into a push output and drops finished channels.
func (s *System) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateReleased:
		return engine.ResultInvalidHandle
	case stateCreated:
		return engine.ResultUninitialized
	}
	if !s.sink.pull() {
		left, right := s.mixLocked(s.bufferLength)
		if err := s.sink.write(left, right); err != nil {
			s.log.Debugf("output write: %v", err)
			return engine.ResultOutputDriverCall
		}
	}
	live := s.channels[:0]
	for _, c := range s.channels {
		if !c.finished {
			live = append(live, c)
		}
	}
	for i := len(live); i < len(s.channels); i++ {
		s.channels[i] = nil
	}
	s.channels = live
	return nil
}

// Close stops every channel and closes the output. The system may be
// initialized again afterwards.
func (s *System) Close() error {
	s.mu.Lock()
	if s.state == stateReleased {
		s.mu.Unlock()
		return engine.ResultInvalidHandle
	}
	out := s.closeLocked()
	s.mu.Unlock()
	return closeSink(out)
}

// closeLocked detaches the output; the caller closes it after unlocking since
// a real-time stream waits for its callback, which takes the lock.
func (s *System) closeLocked() sink {
	for len(s.channels) > 0 {
		s.removeChannelLocked(s.channels[0])
	}
	out := s.sink
	s.sink = nil
	if s.state == stateInitialized {
		s.state = stateCreated
	}
	return out
}

func closeSink(out sink) error {
	if out == nil {
		return nil
	}
	if err := out.close(); err != nil {
		return engine.ResultOutputDriverCall
	}
	return nil
}

// Release closes the system and frees every sound it owns.
func (s *System) Release() error {
	s.mu.Lock()
	if s.state == stateReleased {
		s.mu.Unlock()
		return engine.ResultInvalidHandle
	}
	out := s.closeLocked()
	for snd := range s.sounds {
		s.releaseSoundLocked(snd)
	}
	s.banks = bankCache{}
	s.state = stateReleased
	s.mu.Unlock()
	return closeSink(out)
}

func (s *System) releaseSoundLocked(snd *Sound) {
	for i := 0; i < len(s.channels); {
		if s.channels[i].sound == snd {
			s.removeChannelLocked(s.channels[i])
			continue
		}
		i++
	}
	snd.released = true
	snd.samples = nil
	snd.seq = nil
	delete(s.sounds, snd)
}

func (s *System) removeChannelLocked(c *Channel) {
	c.stopped = true
	for i, other := range s.channels {
		if other == c {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			return
		}
	}
}

var (
	_ engine.System  = (*System)(nil)
	_ engine.Sound   = (*Sound)(nil)
	_ engine.Channel = (*Channel)(nil)
)
