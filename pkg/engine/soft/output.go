package soft

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const (
	wavBitDepth    = 16
	wavAudioFormat = 1 // PCM
)

// sink receives the mix. Pull sinks drive mixing from their own thread; the
// others are fed one buffer per Update.
type sink interface {
	pull() bool
	write(left, right []float32) error
	close() error
}

// discard is the NoSound output.
type discard struct{}

func (discard) pull() bool { return false }
func (discard) write(_, _ []float32) error { return nil }
func (discard) close() error { return nil }

// wavWriter encodes every buffer into a WAV file.
type wavWriter struct {
	file        *os.File
	enc         *wav.Encoder
	numChannels int
	buf         audio.IntBuffer
	written     bool
}

func newWavWriter(path string, sampleRate, numChannels int) (*wavWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wavWriter{
		file:        file,
		enc:         wav.NewEncoder(file, sampleRate, wavBitDepth, numChannels, wavAudioFormat),
		numChannels: numChannels,
		buf: audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

func (w *wavWriter) pull() bool { return false }

func (w *wavWriter) write(left, right []float32) error {
	n := len(left)
	if cap(w.buf.Data) < n*w.numChannels {
		w.buf.Data = make([]int, n*w.numChannels)
	}
	w.buf.Data = w.buf.Data[:n*w.numChannels]
	w.written = true
	for i := 0; i < n; i++ {
		if w.numChannels == 1 {
			w.buf.Data[i] = toInt16((left[i] + right[i]) / 2)
			continue
		}
		w.buf.Data[i*2] = toInt16(left[i])
		w.buf.Data[i*2+1] = toInt16(right[i])
	}
	return w.enc.Write(&w.buf)
}

// close finalizes the RIFF header before closing the file. The encoder only
// writes its headers with the first buffer, so an empty render writes an
// empty buffer first to stay a valid zero-frame WAV.
func (w *wavWriter) close() error {
	var err error
	if !w.written {
		err = w.enc.Write(&audio.IntBuffer{Format: w.buf.Format, SourceBitDepth: wavBitDepth})
	}
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func toInt16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * 0x7FFF)
}

// device is the real-time output, a default portaudio stream whose callback
// pulls the mix.
type device struct {
	stream *portaudio.Stream
}

func openDevice(sampleRate, numChannels, frames int, fill func(out []float32)) (*device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	stream, err := portaudio.OpenDefaultStream(0, numChannels, float64(sampleRate), frames, fill)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	return &device{stream: stream}, nil
}

func (d *device) pull() bool { return true }
func (d *device) write(_, _ []float32) error { return nil }

func (d *device) close() error {
	err := d.stream.Stop()
	if cerr := d.stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// outputDevices counts the portaudio devices able to play sound.
func outputDevices() (int, error) {
	if err := portaudio.Initialize(); err != nil {
		return 0, err
	}
	defer portaudio.Terminate()
	devices, err := portaudio.Devices()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range devices {
		if d.MaxOutputChannels > 0 {
			n++
		}
	}
	return n, nil
}
