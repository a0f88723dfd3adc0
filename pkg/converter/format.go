package converter

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatWAV     Format = "wav"
	FormatBank    Format = "bank"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi", ".smf":
		return FormatMIDI
	case ".wav", ".wave":
		return FormatWAV
	case ".sf2", ".dls":
		return FormatBank
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Standard MIDI file header chunk
	if bytes.Equal(data[:4], []byte("MThd")) {
		return FormatMIDI
	}

	// RIFF containers: WAVE audio, SoundFont 2 or DLS banks
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) {
		switch string(data[8:12]) {
		case "WAVE":
			return FormatWAV
		case "sfbk", "DLS ":
			return FormatBank
		}
	}

	return FormatUnknown
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"midi -> wav",
	}
}

// OutputPath derives the WAV path for input when output is empty.
func OutputPath(input, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".wav"
}
