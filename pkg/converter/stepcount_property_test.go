package converter

import (
	"context"
	"testing"

	"github.com/james-see/midi2wav/pkg/engine/enginetest"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// The update count covers the whole sound and never overshoots by a full buffer.
func TestStepCountCoversSound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("steps*buffer >= frames > (steps-1)*buffer", prop.ForAll(
		func(lengthMS uint32, bufferLen int, sampleRate int) bool {
			frames, steps, err := StepCount(lengthMS, bufferLen, sampleRate)
			if err != nil {
				return false
			}
			covered := uint64(steps) * uint64(bufferLen)
			if covered < frames {
				return false
			}
			if steps > 0 && covered-uint64(bufferLen) >= frames {
				return false
			}
			return steps >= 0
		},
		gen.UInt32Range(0, 3_600_000),
		gen.IntRange(1, 16384),
		gen.IntRange(1, 192000),
	))

	properties.TestingRun(t)
}

// Every render terminates with exactly StepCount updates.
func TestConvertUpdateCountMatchesStepCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("updates == StepCount", prop.ForAll(
		func(lengthMS uint32, bufferLen int) bool {
			fake := enginetest.New()
			fake.SoundLengthMS = lengthMS
			fake.BufferLength = bufferLen

			report, err := newConverter(fake, DefaultOptions()).Convert(context.Background(), request)
			if err != nil {
				return false
			}
			_, steps, err := StepCount(lengthMS, bufferLen, 44100)
			if err != nil {
				return false
			}
			return fake.Updates == steps && report.Steps == steps
		},
		gen.UInt32Range(0, 20_000),
		gen.IntRange(64, 4096),
	))

	properties.TestingRun(t)
}
