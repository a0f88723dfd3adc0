package engine

import (
	"fmt"
	"strings"
)

// ReverbPreset is a global environmental reverb setting.
type ReverbPreset int

const (
	ReverbOff ReverbPreset = iota
	ReverbGeneric
	ReverbRoom
	ReverbHall
	ReverbAuditorium
	ReverbConcertHall
	ReverbArena
	ReverbHangar
)

var reverbNames = []string{
	ReverbOff:         "off",
	ReverbGeneric:     "generic",
	ReverbRoom:        "room",
	ReverbHall:        "hall",
	ReverbAuditorium:  "auditorium",
	ReverbConcertHall: "concerthall",
	ReverbArena:       "arena",
	ReverbHangar:      "hangar",
}

func (p ReverbPreset) String() string {
	if p < 0 || int(p) >= len(reverbNames) {
		return "unknown"
	}
	return reverbNames[p]
}

// ReverbPresets returns the names of all presets in declaration order.
func ReverbPresets() []string {
	out := make([]string, len(reverbNames))
	copy(out, reverbNames)
	return out
}

// ParseReverbPreset returns the preset with the given name, ignoring case.
// An empty name is ReverbOff.
func ParseReverbPreset(name string) (ReverbPreset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ReverbOff, nil
	}
	for i, n := range reverbNames {
		if n == name {
			return ReverbPreset(i), nil
		}
	}
	return ReverbOff, fmt.Errorf("unknown reverb preset %q", name)
}
