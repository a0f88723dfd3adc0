// Package player keeps one engine instance ready for interactive playback of
// audio files and MIDI files rendered through an instrument bank.
package player

import (
	"errors"
	"fmt"

	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// DefaultLowPassGain is applied to every new channel.
const DefaultLowPassGain float32 = 0.6

// Session owns one engine, the sound it is playing and that sound's channel.
// It is not safe for concurrent use.
type Session struct {
	id          string
	system      engine.System
	bank        string
	sound       engine.Sound
	channel     engine.Channel
	destroyed   bool
	strict      bool
	maxChannels int
	lowPassGain float32
	log         logrus.FieldLogger
}

// Option configures a Session.
type Option func(s *Session)

// WithLogger sets the logger engine failures are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithStrict makes every operation stop at its first failed engine call.
func WithStrict(strict bool) Option {
	return func(s *Session) {
		s.strict = strict
	}
}

// WithMaxChannels overrides the engine channel budget.
func WithMaxChannels(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxChannels = n
		}
	}
}

// WithLowPassGain overrides the gain applied to new channels.
func WithLowPassGain(g float32) Option {
	return func(s *Session) {
		s.lowPassGain = g
	}
}

// New creates and initializes an engine through factory. Failed engine calls
// are logged and returned joined; the session is still returned and usable on
// a best effort basis. Only a factory failure makes New return a nil session.
func New(factory engine.Factory, options ...Option) (*Session, error) {
	s := &Session{
		id:          xid.New().String(),
		maxChannels: engine.MaxChannels,
		lowPassGain: DefaultLowPassGain,
		log:         logrus.StandardLogger(),
	}
	for _, option := range options {
		option(s)
	}
	s.log = s.log.WithField("session", s.id)

	c := s.checker()
	system, err := factory()
	if err == nil && system == nil {
		err = errors.New("factory returned no system")
	}
	if err != nil {
		c.Check("System.Create", err)
		return nil, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, c.Err())
	}
	s.system = system

	version, err := system.Version()
	if !c.Check("System.Version", err) {
		return s, c.Err()
	}
	if err == nil && version < engine.HeaderVersion {
		s.log.Warnf("library version too low (lib: %#08x, curr: %#08x)", version, engine.HeaderVersion)
	}

	drivers, err := system.NumDrivers()
	if !c.Check("System.NumDrivers", err) {
		return s, c.Err()
	}
	if err != nil || drivers == 0 {
		s.log.Warn("no sound driver available, falling back to silent output")
		if !c.Check("System.SetOutput", system.SetOutput(engine.OutputNoSound)) {
			return s, c.Err()
		}
	}

	c.Check("System.Init", system.Init(s.maxChannels, engine.InitNormal, ""))
	s.log.WithField("drivers", drivers).Debug("engine initialized")
	return s, c.Err()
}

func (s *Session) checker() *engine.Checker {
	return engine.NewChecker(s.log, s.strict)
}

// ID returns the session identifier used in log entries.
func (s *Session) ID() string {
	return s.id
}

// SetInstrumentBank sets the bank used by subsequent Play calls. The path is
// not checked until a MIDI file is played. An empty path clears it.
func (s *Session) SetInstrumentBank(path string) {
	s.bank = path
}

// InstrumentBank returns the bank set with SetInstrumentBank.
func (s *Session) InstrumentBank() string {
	return s.bank
}

// Play starts path on a new channel, releasing any previously held sound
// first.
func (s *Session) Play(path string) error {
	if s.destroyed {
		return fmt.Errorf("%w: session destroyed", engine.ErrEngineUnavailable)
	}
	c := s.checker()
	s.releaseSound(c)
	if c.Failed() && s.strict {
		return c.Err()
	}

	var info *engine.CreateSoundInfo
	if s.bank != "" {
		info = &engine.CreateSoundInfo{BankPath: s.bank}
	}
	sound, err := s.system.CreateSound(path, info)
	if !c.Check("System.CreateSound", err) || err != nil {
		return c.Err()
	}
	s.sound = sound

	channel, err := s.system.PlaySound(sound, false)
	if !c.Check("System.PlaySound", err) || err != nil {
		return c.Err()
	}
	s.channel = channel

	c.Check("Channel.SetLowPassGain", channel.SetLowPassGain(s.lowPassGain))
	s.log.WithFields(logrus.Fields{"file": path, "bank": s.bank}).Info("playing")
	return c.Err()
}

// IsPlaying reports whether the current channel is still producing sound.
func (s *Session) IsPlaying() bool {
	if s.channel == nil {
		return false
	}
	playing, err := s.channel.IsPlaying()
	return err == nil && playing
}

// Update lets the engine perform per-frame housekeeping.
func (s *Session) Update() error {
	if s.system == nil || s.destroyed {
		return nil
	}
	c := s.checker()
	c.Check("System.Update", s.system.Update())
	return c.Err()
}

// Stop stops the current channel and keeps the sound loaded.
func (s *Session) Stop() error {
	if s.channel == nil {
		return nil
	}
	c := s.checker()
	c.Check("Channel.Stop", s.channel.Stop())
	s.channel = nil
	return c.Err()
}

func (s *Session) releaseSound(c *engine.Checker) {
	if s.sound == nil {
		return
	}
	s.channel = nil
	c.Check("Sound.Release", s.sound.Release())
	s.sound = nil
}

// Destroy releases the sound, then closes and releases the engine. Calling it
// again is a no-op.
func (s *Session) Destroy() error {
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	c := engine.NewChecker(s.log, false)
	s.releaseSound(c)
	if s.system != nil {
		c.Check("System.Close", s.system.Close())
		c.Check("System.Release", s.system.Release())
		s.system = nil
	}
	return c.Err()
}
