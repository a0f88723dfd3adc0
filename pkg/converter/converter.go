package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/james-see/midi2wav/pkg/engine/soft"
	"github.com/sirupsen/logrus"
)

// StepCount converts a sound length into the number of mix updates needed to
// render it. Lengths are measured in output frames:
//
//	frames = ceil(lengthMS * sampleRate / 1000)
//	steps  = ceil(frames / bufferLen)
//
// A zero buffer length or sample rate is rejected with engine.ErrInvalidConfig.
func StepCount(lengthMS uint32, bufferLen, sampleRate int) (frames uint64, steps int, err error) {
	if bufferLen <= 0 || sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: buffer length %d, sample rate %d", engine.ErrInvalidConfig, bufferLen, sampleRate)
	}
	frames = (uint64(lengthMS)*uint64(sampleRate) + 999) / 1000
	steps = int((frames + uint64(bufferLen) - 1) / uint64(bufferLen))
	return frames, steps, nil
}

// job is the engine state of one conversion.
type job struct {
	system engine.System
	sound  engine.Sound
	chk    *engine.Checker
	log    logrus.FieldLogger
}

// Convert renders req.MIDIPath through req.BankPath into req.WAVPath. Failed
// engine calls are logged and returned joined; unless Options.Strict is set
// the render carries on past them. The engine is always torn down. The
// returned report is nil only when no engine could be created.
func (c *Converter) Convert(ctx context.Context, req Request) (*Report, error) {
	if req.MIDIPath == "" || req.WAVPath == "" {
		return nil, fmt.Errorf("%w: midi and wav paths are required", ErrInvalidRequest)
	}
	log := c.log.WithFields(logrus.Fields{
		"component": "converter",
		"midi":      req.MIDIPath,
		"wav":       req.WAVPath,
	})
	chk := engine.NewChecker(log, c.opts.Strict)

	system, err := c.factory()
	if err == nil && system == nil {
		err = errors.New("factory returned no system")
	}
	if err != nil {
		chk.Check("System.Create", err)
		return nil, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, chk.Err())
	}

	j := &job{system: system, chk: chk, log: log}
	report := &Report{Output: req.WAVPath}
	start := time.Now()
	runErr := c.render(ctx, j, req, report)
	j.teardown()

	log.WithFields(logrus.Fields{
		"steps":   report.Steps,
		"frames":  report.Frames,
		"elapsed": time.Since(start),
	}).Info("render finished")

	return report, engine.Errors(nonNil(runErr, chk.Err())).Ret()
}

func (c *Converter) render(ctx context.Context, j *job, req Request, report *Report) error {
	o := c.opts
	s := j.system
	chk := j.chk

	if !chk.Check("System.SetSoftwareFormat", s.SetSoftwareFormat(o.SampleRate, o.SpeakerMode)) {
		return nil
	}
	rate, _, err := s.SoftwareFormat()
	if !chk.Check("System.SoftwareFormat", err) {
		return nil
	}
	if err != nil {
		rate = o.SampleRate
	}
	report.SampleRate = rate

	if o.BufferLength > 0 {
		numBuffers := o.NumBuffers
		if numBuffers <= 0 {
			numBuffers = 4
		}
		if !chk.Check("System.SetDSPBufferSize", s.SetDSPBufferSize(o.BufferLength, numBuffers)) {
			return nil
		}
	}
	if !chk.Check("System.SetOutput", s.SetOutput(engine.OutputWavWriterNRT)) {
		return nil
	}
	maxChannels := o.MaxChannels
	if maxChannels <= 0 {
		maxChannels = engine.MaxChannels
	}
	if !chk.Check("System.Init", s.Init(maxChannels, engine.InitStreamFromUpdate, req.WAVPath)) {
		return nil
	}
	if o.Reverb != engine.ReverbOff {
		if !chk.Check("System.SetReverbPreset", s.SetReverbPreset(o.Reverb)) {
			return nil
		}
	}

	sound, err := s.CreateSound(req.MIDIPath, &engine.CreateSoundInfo{BankPath: req.BankPath})
	if !chk.Check("System.CreateSound", err) || err != nil {
		return nil
	}
	j.sound = sound

	length, err := sound.Length(engine.TimeUnitMS)
	if !chk.Check("Sound.Length", err) {
		return nil
	}
	report.Length = time.Duration(length) * time.Millisecond

	bufLen, _, err := s.DSPBufferSize()
	if !chk.Check("System.DSPBufferSize", err) {
		return nil
	}
	report.BufferLength = bufLen

	frames, steps, err := StepCount(length, bufLen, rate)
	if err != nil {
		return err
	}
	report.Frames = frames

	channel, err := s.PlaySound(sound, false)
	if !chk.Check("System.PlaySound", err) || err != nil {
		return nil
	}
	if !chk.Check("Channel.SetLowPassGain", channel.SetLowPassGain(o.LowPassGain)) {
		return nil
	}
	if !chk.Check("Channel.SetVolume", channel.SetVolume(o.Volume)) {
		return nil
	}

	j.log.WithFields(logrus.Fields{
		"length_ms":   length,
		"sample_rate": rate,
		"buffer":      bufLen,
		"steps":       steps,
	}).Debug("rendering")

	for elapsed := uint64(0); elapsed < frames; elapsed += uint64(bufLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok := chk.Check("System.Update", s.Update())
		report.Steps++
		if !ok {
			return nil
		}
	}
	return nil
}

// teardown releases the sound, then closes and releases the engine. It runs
// regardless of earlier failures.
func (j *job) teardown() {
	if j.sound != nil {
		j.chk.Check("Sound.Release", j.sound.Release())
		j.sound = nil
	}
	j.chk.Check("System.Close", j.system.Close())
	j.chk.Check("System.Release", j.system.Release())
}

func nonNil(errs ...error) []error {
	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// ConvertMIDIToWAV renders midiPath through the instrument bank bankPath into
// wavPath with the software engine and default settings.
func ConvertMIDIToWAV(midiPath, bankPath, wavPath string) error {
	_, err := New(soft.Factory(soft.Options{}), DefaultOptions()).Convert(context.Background(), Request{
		MIDIPath: midiPath,
		BankPath: bankPath,
		WAVPath:  wavPath,
	})
	return err
}
