package soft

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/goleak"

	"github.com/james-see/midi2wav/pkg/engine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bankEnv points at a SoundFont used by the synthesis tests.
const bankEnv = "MIDI2WAV_TEST_BANK"

func writeWAV(t *testing.T, path string, sampleRate, numChannels, frames int, value int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	e := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	data := make([]int, frames*numChannels)
	for i := range data {
		data[i] = value
	}
	require.NoError(t, e.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, e.Close())
	require.NoError(t, f.Close())
}

func tempo(bpm float64) smf.Message {
	us := uint32(60000000.0 / bpm)
	return smf.Message([]byte{0xFF, 0x51, 0x03, byte(us >> 16), byte(us >> 8), byte(us)})
}

// midiFile builds a one-track file: a note for one beat at 120 BPM, a switch
// to 60 BPM, then a second note for one beat.
func midiFile(t *testing.T) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	var track smf.Track
	track.Add(0, tempo(120))
	track.Add(0, midi.NoteOn(0, 60, 100))
	track.Add(480, midi.NoteOff(0, 60))
	track.Add(0, tempo(60))
	track.Add(0, midi.NoteOn(0, 64, 100))
	track.Add(480, midi.NoteOff(0, 64))
	track.Close(0)
	require.NoError(t, s.Add(track))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func newNRT(t *testing.T, out string, bufferLength int) *System {
	t.Helper()
	s := New(Options{})
	require.NoError(t, s.SetOutput(engine.OutputWavWriterNRT))
	require.NoError(t, s.SetSoftwareFormat(44100, engine.SpeakerModeStereo))
	require.NoError(t, s.SetDSPBufferSize(bufferLength, 4))
	require.NoError(t, s.Init(engine.MaxChannels, engine.InitStreamFromUpdate, out))
	return s
}

func newSilent(t *testing.T, maxChannels int) *System {
	t.Helper()
	s := New(Options{})
	require.NoError(t, s.SetOutput(engine.OutputNoSound))
	require.NoError(t, s.SetSoftwareFormat(44100, engine.SpeakerModeStereo))
	require.NoError(t, s.Init(maxChannels, engine.InitNormal, ""))
	return s
}

func TestLifecycle(t *testing.T) {
	s := New(Options{Drivers: func() (int, error) { return 3, nil }})

	v, err := s.Version()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, engine.HeaderVersion)

	n, err := s.NumDrivers()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rate, _, err := s.SoftwareFormat()
	require.NoError(t, err)
	assert.Equal(t, defaultSampleRate, rate)

	_, err = s.CreateSound("song.mid", nil)
	assert.Equal(t, engine.ResultUninitialized, err)
	assert.Equal(t, engine.ResultUninitialized, s.Update())

	require.NoError(t, s.SetOutput(engine.OutputNoSound))
	require.NoError(t, s.Init(8, engine.InitNormal, ""))
	assert.Equal(t, engine.ResultInitialized, s.SetOutput(engine.OutputAuto))
	assert.Equal(t, engine.ResultInitialized, s.SetDSPBufferSize(512, 2))
	require.NoError(t, s.Update())

	require.NoError(t, s.Close())
	// closed systems may be initialized again
	require.NoError(t, s.Init(8, engine.InitNormal, ""))
	require.NoError(t, s.Release())

	_, err = s.Version()
	assert.Equal(t, engine.ResultInvalidHandle, err)
	assert.Equal(t, engine.ResultInvalidHandle, s.Release())
}

func TestInvalidSettings(t *testing.T) {
	s := New(Options{})
	defer s.Release()
	assert.Equal(t, engine.ResultInvalidParam, s.SetSoftwareFormat(0, engine.SpeakerModeStereo))
	assert.Equal(t, engine.ResultInvalidParam, s.SetDSPBufferSize(0, 4))
	assert.Equal(t, engine.ResultInvalidParam, s.Init(0, engine.InitNormal, ""))
	require.NoError(t, s.SetOutput(engine.OutputWavWriterNRT))
	assert.Equal(t, engine.ResultInvalidParam, s.Init(8, engine.InitStreamFromUpdate, ""))
	assert.Equal(t, engine.ResultInvalidParam, s.SetReverbPreset(engine.ReverbPreset(99)))
}

func TestNumDriversFailure(t *testing.T) {
	s := New(Options{Drivers: func() (int, error) { return 0, errors.New("no host api") }})
	defer s.Release()
	_, err := s.NumDrivers()
	assert.True(t, errors.Is(err, engine.ErrDeviceUnavailable))
}

func TestRenderWAVToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	writeWAV(t, in, 44100, 2, 22050, 16383)

	s := newNRT(t, out, 1024)
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)

	ms, err := snd.Length(engine.TimeUnitMS)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), ms)
	pcm, err := snd.Length(engine.TimeUnitPCM)
	require.NoError(t, err)
	assert.Equal(t, uint32(22050), pcm)

	ch, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	require.NoError(t, ch.SetVolume(0.5))

	// 22050 frames / 1024
	for i := 0; i < 22; i++ {
		require.NoError(t, s.Update())
	}
	playing, err := ch.IsPlaying()
	require.NoError(t, err)
	assert.False(t, playing)

	require.NoError(t, snd.Release())
	require.NoError(t, s.Close())
	require.NoError(t, s.Release())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	assert.Equal(t, uint32(44100), d.SampleRate)
	assert.Equal(t, uint16(2), d.NumChans)
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 22*1024*2)
	assert.InDelta(t, 8191, buf.Data[0], 2)
	assert.InDelta(t, 8191, buf.Data[22049*2+1], 2)
	assert.Equal(t, 0, buf.Data[len(buf.Data)-1])
}

func TestRenderMonoOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	writeWAV(t, in, 44100, 1, 100, 16383)

	s := New(Options{})
	require.NoError(t, s.SetOutput(engine.OutputWavWriterNRT))
	require.NoError(t, s.SetSoftwareFormat(44100, engine.SpeakerModeMono))
	require.NoError(t, s.SetDSPBufferSize(128, 4))
	require.NoError(t, s.Init(4, engine.InitStreamFromUpdate, out))
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)
	_, err = s.PlaySound(snd, false)
	require.NoError(t, err)
	require.NoError(t, s.Update())
	require.NoError(t, s.Release())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), d.NumChans)
	require.Len(t, buf.Data, 128)
	assert.InDelta(t, 16382, buf.Data[0], 2)
}

func TestResampledLength(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 22050, 1, 22050, 1000)

	s := newSilent(t, 4)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)
	ms, err := snd.Length(engine.TimeUnitMS)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), ms)
	pcm, err := snd.Length(engine.TimeUnitPCM)
	require.NoError(t, err)
	assert.Equal(t, uint32(22050), pcm, "PCM length is counted at the file's own rate")

	// one second at 22050 Hz is 44100 frames at the mixer rate
	samples := snd.(*Sound).samples[0]
	assert.InDelta(t, 44100, len(samples), 64)
	level := float64(1000) / 32768
	assert.InDelta(t, level, samples[len(samples)/2], 1e-3)

	ch, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	c := ch.(*Channel)
	left := make([]float32, 50000)
	right := make([]float32, 50000)
	c.mix(left, right)
	assert.InDelta(t, level, left[len(samples)/2], 1e-3)
	assert.Zero(t, left[len(samples)])
	assert.True(t, c.finished)
}

func TestPCMLengthRoundsUp(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 44100, 2, 44101, 1000)

	s := newSilent(t, 4)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)
	ms, err := snd.Length(engine.TimeUnitMS)
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), ms, "a partial millisecond still needs rendering")
}

func TestEmptyRenderIsValidWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	s := newNRT(t, out, 1024)
	require.NoError(t, s.Close())
	require.NoError(t, s.Release())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	d := wav.NewDecoder(f)
	assert.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Empty(t, buf.Data)
}

func TestCreateSoundErrors(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "song.mid")
	require.NoError(t, os.WriteFile(song, midiFile(t), 0o644))
	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not audio at all"), 0o644))
	badBank := filepath.Join(dir, "bad.sf2")
	require.NoError(t, os.WriteFile(badBank, []byte("RIFF\x04\x00\x00\x00sfbk"), 0o644))

	s := newSilent(t, 4)
	defer s.Release()

	tests := []struct {
		name string
		path string
		info *engine.CreateSoundInfo
		want engine.Result
		kind error
	}{
		{"missing file", filepath.Join(dir, "nope.wav"), nil, engine.ResultFileNotFound, engine.ErrAssetNotFound},
		{"unknown format", junk, nil, engine.ResultFormat, engine.ErrUnsupportedFormat},
		{"midi without bank", song, nil, engine.ResultBankRequired, engine.ErrAssetNotFound},
		{"midi with empty bank", song, &engine.CreateSoundInfo{}, engine.ResultBankRequired, engine.ErrAssetNotFound},
		{"missing bank", song, &engine.CreateSoundInfo{BankPath: filepath.Join(dir, "gm.sf2")}, engine.ResultFileNotFound, engine.ErrAssetNotFound},
		{"corrupt bank", song, &engine.CreateSoundInfo{BankPath: badBank}, engine.ResultFormat, engine.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateSound(tt.path, tt.info)
			assert.Equal(t, tt.want, err)
			assert.True(t, errors.Is(err, tt.kind))
		})
	}
}

func TestParseSequenceTempoMap(t *testing.T) {
	seq, err := parseSequence(midiFile(t), 44100)
	require.NoError(t, err)

	// one beat at 120 BPM plus one beat at 60 BPM
	assert.Equal(t, uint64(66150), seq.frames)
	assert.Equal(t, int64(1500), seq.duration.Milliseconds())

	require.Len(t, seq.events, 4)
	assert.Equal(t, int32(0x90), seq.events[0].command)
	assert.Equal(t, int32(60), seq.events[0].data1)
	assert.Equal(t, uint64(0), seq.events[0].frame)
	assert.Equal(t, uint64(22050), seq.events[1].frame)
	assert.Equal(t, uint64(22050), seq.events[2].frame)
	assert.Equal(t, uint64(66150), seq.events[3].frame)
}

func TestParseSequenceRejectsGarbage(t *testing.T) {
	_, err := parseSequence([]byte("MThd garbage"), 44100)
	assert.Equal(t, engine.ResultFormat, err)
}

func TestChannelStealing(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 44100, 1, 44100, 1000)

	s := newSilent(t, 1)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)

	first, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	second, err := s.PlaySound(snd, false)
	require.NoError(t, err)

	_, err = first.IsPlaying()
	assert.Equal(t, engine.ResultInvalidHandle, err)
	playing, err := second.IsPlaying()
	require.NoError(t, err)
	assert.True(t, playing)
}

func TestSoundReleaseInvalidatesChannel(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 44100, 2, 1000, 1000)

	s := newSilent(t, 4)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)
	ch, err := s.PlaySound(snd, true)
	require.NoError(t, err)

	playing, err := ch.IsPlaying()
	require.NoError(t, err)
	assert.True(t, playing, "paused channels count as playing")

	require.NoError(t, snd.Release())
	assert.Equal(t, engine.ResultInvalidHandle, ch.SetLowPassGain(0.6))
	_, err = snd.Length(engine.TimeUnitMS)
	assert.Equal(t, engine.ResultInvalidHandle, err)
	assert.Equal(t, engine.ResultInvalidHandle, snd.Release())
	_, err = s.PlaySound(snd, false)
	assert.Equal(t, engine.ResultInvalidHandle, err)
}

func TestStopAndPause(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 44100, 2, 1000, 1000)

	s := newSilent(t, 4)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)
	ch, err := s.PlaySound(snd, true)
	require.NoError(t, err)

	c := ch.(*Channel)
	left := make([]float32, 16)
	right := make([]float32, 16)
	c.mix(left, right)
	assert.Zero(t, left[0], "paused channel is silent")

	require.NoError(t, ch.SetPaused(false))
	c.mix(left, right)
	assert.NotZero(t, left[0])

	require.NoError(t, ch.Stop())
	assert.Equal(t, engine.ResultInvalidHandle, ch.Stop())
}

func TestLowPass(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.wav")
	writeWAV(t, in, 44100, 1, 64, 0x4000)

	s := newSilent(t, 4)
	defer s.Release()
	snd, err := s.CreateSound(in, nil)
	require.NoError(t, err)

	ch, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	assert.Equal(t, engine.ResultInvalidParam, ch.SetLowPassGain(1.5))
	require.NoError(t, ch.SetLowPassGain(0.5))

	left := make([]float32, 3)
	right := make([]float32, 3)
	ch.(*Channel).mix(left, right)
	// a 0.5 step response: 0.5 * (1/2, 3/4, 7/8)
	assert.InDelta(t, 0.25, left[0], 1e-4)
	assert.InDelta(t, 0.375, left[1], 1e-4)
	assert.InDelta(t, 0.4375, left[2], 1e-4)

	pass, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	left = make([]float32, 1)
	right = make([]float32, 1)
	pass.(*Channel).mix(left, right)
	assert.InDelta(t, 0.5, left[0], 1e-4)
}

func TestReverbSend(t *testing.T) {
	assert.Equal(t, int32(0), reverbSend(engine.ReverbOff))
	assert.Equal(t, int32(80), reverbSend(engine.ReverbAuditorium))
	for _, p := range []engine.ReverbPreset{engine.ReverbGeneric, engine.ReverbHangar} {
		assert.Greater(t, reverbSend(p), int32(0))
		assert.LessOrEqual(t, reverbSend(p), int32(127))
	}
}

func TestRenderMIDIWithBank(t *testing.T) {
	bank := os.Getenv(bankEnv)
	if bank == "" {
		t.Skipf("Skipping test: set %s to a SoundFont", bankEnv)
	}
	dir := t.TempDir()
	song := filepath.Join(dir, "song.mid")
	out := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(song, midiFile(t), 0o644))

	s := newNRT(t, out, 1024)
	require.NoError(t, s.SetReverbPreset(engine.ReverbAuditorium))
	snd, err := s.CreateSound(song, &engine.CreateSoundInfo{BankPath: bank})
	require.NoError(t, err)
	ms, err := snd.Length(engine.TimeUnitMS)
	require.NoError(t, err)
	assert.Equal(t, uint32(1500), ms)

	ch, err := s.PlaySound(snd, false)
	require.NoError(t, err)
	require.NoError(t, ch.SetLowPassGain(0.6))
	// 66150 frames / 1024
	for i := 0; i < 65; i++ {
		require.NoError(t, s.Update())
	}
	require.NoError(t, s.Release())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 65*1024*2)
	var peak int
	for _, v := range buf.Data {
		if v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, 0)
}
