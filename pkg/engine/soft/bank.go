package soft

import (
	"bytes"
	"errors"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/james-see/midi2wav/pkg/engine"
)

// bankCache keeps parsed instrument banks for the lifetime of a System.
type bankCache map[string]*meltysynth.SoundFont

// load returns the SoundFont at path, parsing it on first use.
func (c bankCache) load(path string) (*meltysynth.SoundFont, error) {
	if sf, ok := c[path]; ok {
		return sf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, engine.ResultFileNotFound
		}
		return nil, engine.ResultFileBad
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, engine.ResultFormat
	}
	c[path] = sf
	return sf, nil
}
