package soft

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/james-see/midi2wav/pkg/engine"
	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultMicrosPerBeat = 500000 // 120 BPM

// midiEvent is a channel message stamped with its output frame.
type midiEvent struct {
	frame   uint64
	channel int32
	command int32
	data1   int32
	data2   int32
}

// sequence is a MIDI file flattened into one frame-ordered event list.
type sequence struct {
	events   []midiEvent
	frames   uint64
	duration time.Duration
}

type tickEvent struct {
	tick  int64
	order int
	msg   smf.Message
}

// parseSequence reads a standard MIDI file and converts its tick positions to
// frames at sampleRate, following every tempo change.
func parseSequence(data []byte, sampleRate int) (*sequence, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, engine.ResultFormat
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || mt.Resolution() == 0 {
		// SMPTE timing is not used by General MIDI files
		return nil, engine.ResultFormat
	}
	resolution := float64(mt.Resolution())

	var all []tickEvent
	var endTick int64
	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			all = append(all, tickEvent{tick: tick, order: len(all), msg: ev.Message})
		}
		if tick > endTick {
			endTick = tick
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].tick < all[j].tick
	})

	seq := &sequence{}
	microsPerBeat := float64(defaultMicrosPerBeat)
	var lastTick int64
	var lastSec float64
	secondsAt := func(tick int64) float64 {
		return lastSec + float64(tick-lastTick)/resolution*microsPerBeat/1e6
	}

	for _, ev := range all {
		msg := ev.msg
		sec := secondsAt(ev.tick)

		// Tempo meta message (FF 51 03 tt tt tt)
		if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
			us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
			if us > 0 {
				lastSec = sec
				lastTick = ev.tick
				microsPerBeat = float64(us)
			}
			continue
		}

		if len(msg) < 2 || msg[0] < 0x80 || msg[0] >= 0xF0 {
			continue
		}
		e := midiEvent{
			frame:   uint64(math.Round(sec * float64(sampleRate))),
			channel: int32(msg[0] & 0x0F),
			command: int32(msg[0] & 0xF0),
			data1:   int32(msg[1]),
		}
		if len(msg) >= 3 {
			e.data2 = int32(msg[2])
		}
		seq.events = append(seq.events, e)
	}

	end := secondsAt(endTick)
	seq.frames = uint64(math.Ceil(end * float64(sampleRate)))
	seq.duration = time.Duration(end * float64(time.Second))
	return seq, nil
}
