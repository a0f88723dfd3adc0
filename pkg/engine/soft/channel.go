package soft

import (
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/james-see/midi2wav/pkg/engine"
)

// voice produces the raw signal of a channel.
type voice interface {
	// render writes up to len(left) frames and returns how many were written.
	render(left, right []float32) int
	done() bool
}

// pcmVoice plays decoded samples already converted to the mixer rate.
type pcmVoice struct {
	samples [][]float32
	pos     int
}

func newPCMVoice(snd *Sound) *pcmVoice {
	return &pcmVoice{samples: snd.samples}
}

func (v *pcmVoice) done() bool {
	return len(v.samples) == 0 || v.pos >= len(v.samples[0])
}

func (v *pcmVoice) render(left, right []float32) int {
	if v.done() {
		return 0
	}
	last := len(v.samples) - 1
	n := copy(left, v.samples[0][v.pos:])
	copy(right[:n], v.samples[last][v.pos:])
	v.pos += n
	return n
}

// synthVoice renders a MIDI timeline through a SoundFont synthesizer.
type synthVoice struct {
	synth  *meltysynth.Synthesizer
	events []midiEvent
	next   int
	pos    uint64
	end    uint64
}

func newSynthVoice(snd *Sound, mixRate int, reverb engine.ReverbPreset) (*synthVoice, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(mixRate))
	settings.EnableReverbAndChorus = reverb != engine.ReverbOff
	synth, err := meltysynth.NewSynthesizer(snd.bank, settings)
	if err != nil {
		return nil, err
	}
	v := &synthVoice{
		synth:  synth,
		events: snd.seq.events,
		end:    snd.seq.frames,
	}
	v.setReverb(reverb)
	return v, nil
}

func (v *synthVoice) setReverb(p engine.ReverbPreset) {
	level := reverbSend(p)
	for ch := int32(0); ch < 16; ch++ {
		v.synth.ProcessMidiMessage(ch, 0xB0, ccReverbSend, level)
	}
}

func (v *synthVoice) done() bool {
	return v.pos >= v.end && v.next >= len(v.events)
}

func (v *synthVoice) render(left, right []float32) int {
	n := 0
	for n < len(left) && !v.done() {
		for v.next < len(v.events) && v.events[v.next].frame <= v.pos {
			e := v.events[v.next]
			v.synth.ProcessMidiMessage(e.channel, e.command, e.data1, e.data2)
			v.next++
		}
		chunk := uint64(len(left) - n)
		if v.next < len(v.events) {
			if until := v.events[v.next].frame - v.pos; until < chunk {
				chunk = until
			}
		} else if rest := v.end - v.pos; v.pos < v.end && rest < chunk {
			chunk = rest
		}
		if chunk == 0 {
			continue
		}
		v.synth.Render(left[n:n+int(chunk)], right[n:n+int(chunk)])
		n += int(chunk)
		v.pos += chunk
	}
	return n
}

// Channel is one playback of a Sound.
type Channel struct {
	sys   *System
	sound *Sound
	voice voice

	lowPassGain float32
	volume      float32
	paused      bool
	stopped     bool
	finished    bool

	// one-pole low-pass state
	lpLeft, lpRight float32

	scratchLeft, scratchRight []float32
}

func (c *Channel) valid() error {
	if c.stopped || c.sound.released || c.sys.state != stateInitialized {
		return engine.ResultInvalidHandle
	}
	return nil
}

// mix adds up to len(left) frames of this channel into the mix buffers.
func (c *Channel) mix(left, right []float32) {
	if c.paused || c.finished {
		return
	}
	n := len(left)
	if cap(c.scratchLeft) < n {
		c.scratchLeft = make([]float32, n)
		c.scratchRight = make([]float32, n)
	}
	l := c.scratchLeft[:n]
	r := c.scratchRight[:n]
	for i := range l {
		l[i], r[i] = 0, 0
	}

	written := c.voice.render(l, r)
	for i := 0; i < written; i++ {
		c.lpLeft += c.lowPassGain * (l[i] - c.lpLeft)
		c.lpRight += c.lowPassGain * (r[i] - c.lpRight)
		left[i] += c.lpLeft * c.volume
		right[i] += c.lpRight * c.volume
	}
	if c.voice.done() {
		c.finished = true
	}
}

// SetLowPassGain sets the low-pass filter gain in [0, 1]; 1 passes the signal
// through unchanged.
func (c *Channel) SetLowPassGain(gain float32) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.valid(); err != nil {
		return err
	}
	if gain < 0 || gain > 1 {
		return engine.ResultInvalidParam
	}
	c.lowPassGain = gain
	return nil
}

// SetVolume sets the linear channel volume.
func (c *Channel) SetVolume(volume float32) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.valid(); err != nil {
		return err
	}
	if volume < 0 {
		return engine.ResultInvalidParam
	}
	c.volume = volume
	return nil
}

func (c *Channel) SetPaused(paused bool) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.valid(); err != nil {
		return err
	}
	c.paused = paused
	return nil
}

// IsPlaying reports whether the channel still has audio to produce. A paused
// channel counts as playing.
func (c *Channel) IsPlaying() (bool, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.valid(); err != nil {
		return false, err
	}
	return !c.finished, nil
}

func (c *Channel) Stop() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.valid(); err != nil {
		return err
	}
	c.sys.removeChannelLocked(c)
	return nil
}
