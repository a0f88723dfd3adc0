package soft

import (
	"bytes"
	"errors"
	"math"
	"os"

	"github.com/go-audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/james-see/midi2wav/pkg/engine"
)

type soundKind int

const (
	kindPCM soundKind = iota
	kindMIDI
)

// Sound is a loaded WAV or MIDI asset owned by a System.
type Sound struct {
	sys  *System
	path string
	kind soundKind

	// PCM data, one slice per source channel at the mixer rate. rate and
	// srcFrames describe the file as decoded.
	samples   [][]float32
	rate      int
	srcFrames uint64

	// MIDI timeline and the bank it is rendered with.
	seq  *sequence
	bank *meltysynth.SoundFont

	released bool
}

// loadSound reads path and builds a Sound for a mixer running at sampleRate.
// Callers hold sys.mu.
func (s *System) loadSound(path string, info *engine.CreateSoundInfo) (*Sound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, engine.ResultFileNotFound
		}
		return nil, engine.ResultFileBad
	}

	snd := &Sound{sys: s, path: path}
	switch {
	case isMIDI(data):
		if info == nil || info.BankPath == "" {
			return nil, engine.ResultBankRequired
		}
		bank, err := s.banks.load(info.BankPath)
		if err != nil {
			return nil, err
		}
		seq, err := parseSequence(data, s.sampleRate)
		if err != nil {
			return nil, err
		}
		snd.kind = kindMIDI
		snd.seq = seq
		snd.bank = bank
		snd.rate = s.sampleRate
	case isWAV(data):
		if err := snd.decodeWAV(data, s.sampleRate); err != nil {
			return nil, err
		}
	default:
		return nil, engine.ResultFormat
	}
	return snd, nil
}

func isMIDI(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "MThd"
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func (snd *Sound) decodeWAV(data []byte, mixRate int) error {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return engine.ResultFormat
	}
	buf, err := d.FullPCMBuffer()
	if err != nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return engine.ResultFileBad
	}
	snd.kind = kindPCM
	snd.rate = int(d.SampleRate)
	if snd.rate <= 0 {
		return engine.ResultFormat
	}
	numChannels := buf.Format.NumChannels
	scale := float32(math.Pow(2, float64(d.BitDepth)-1))
	if d.BitDepth == 8 {
		// 8-bit WAV is unsigned
		scale = 0x80
	}

	frames := len(buf.Data) / numChannels
	snd.srcFrames = uint64(frames)
	snd.samples = make([][]float32, numChannels)
	for c := range snd.samples {
		samples := make([]float32, frames)
		for i := 0; i < frames; i++ {
			v := buf.Data[i*numChannels+c]
			if d.BitDepth == 8 {
				v -= 0x80
			}
			samples[i] = float32(v) / scale
		}
		if snd.rate != mixRate && frames > 0 {
			samples, err = resampler.ResampleMonoFloat32(samples, float64(snd.rate), float64(mixRate), resampler.QualityHigh)
			if err != nil {
				return engine.ResultInternal
			}
		}
		snd.samples[c] = samples
	}
	return nil
}

// frames returns the sound length in frames at its own rate.
func (snd *Sound) frames() uint64 {
	if snd.kind == kindMIDI {
		return snd.seq.frames
	}
	return snd.srcFrames
}

// Length returns the duration in milliseconds or in frames at the sound's rate.
func (snd *Sound) Length(unit engine.TimeUnit) (uint32, error) {
	snd.sys.mu.Lock()
	defer snd.sys.mu.Unlock()
	if snd.released || snd.sys.state == stateReleased {
		return 0, engine.ResultInvalidHandle
	}
	switch unit {
	case engine.TimeUnitPCM:
		return uint32(snd.frames()), nil
	case engine.TimeUnitMS:
		if snd.kind == kindMIDI {
			return uint32(math.Ceil(snd.seq.duration.Seconds() * 1000)), nil
		}
		rate := uint64(snd.rate)
		return uint32((snd.frames()*1000 + rate - 1) / rate), nil
	default:
		return 0, engine.ResultInvalidParam
	}
}

// Release frees the sound and stops every channel playing it.
func (snd *Sound) Release() error {
	snd.sys.mu.Lock()
	defer snd.sys.mu.Unlock()
	if snd.released || snd.sys.state == stateReleased {
		return engine.ResultInvalidHandle
	}
	snd.sys.releaseSoundLocked(snd)
	return nil
}
