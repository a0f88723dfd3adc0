package soft

import "github.com/james-see/midi2wav/pkg/engine"

// ccReverbSend is the MIDI controller carrying the reverb send level.
const ccReverbSend = 91

// reverbSend maps a preset to the reverb send applied to every MIDI channel.
func reverbSend(p engine.ReverbPreset) int32 {
	switch p {
	case engine.ReverbGeneric:
		return 40
	case engine.ReverbRoom:
		return 30
	case engine.ReverbHall:
		return 70
	case engine.ReverbAuditorium:
		return 80
	case engine.ReverbConcertHall:
		return 90
	case engine.ReverbArena:
		return 100
	case engine.ReverbHangar:
		return 120
	default:
		return 0
	}
}
