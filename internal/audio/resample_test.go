package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsampleLength(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		inRate  int
		outRate int
		want    int
	}{
		{"48k to 16k", 4096, 48000, 16000, 1365},
		{"44.1k to 16k", 4410, 44100, 16000, 1600},
		{"32k to 16k", 3200, 32000, 16000, 1600},
		{"empty frame", 0, 48000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make(Frame, tt.samples)
			out := Downsample(frame, tt.inRate, tt.outRate)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestDownsamplePassthrough(t *testing.T) {
	frame := Frame{0.1, 0.2, 0.3}

	t.Run("equal rates", func(t *testing.T) {
		out := Downsample(frame, 16000, 16000)
		assert.Equal(t, frame, out)
	})

	t.Run("input below output rate", func(t *testing.T) {
		out := Downsample(frame, 8000, 16000)
		assert.Equal(t, frame, out)
	})
}

func TestDownsamplePreservesConstantSignal(t *testing.T) {
	frame := make(Frame, 4800)
	for i := range frame {
		frame[i] = 0.5
	}

	out := Downsample(frame, 48000, 16000)
	require.NotEmpty(t, out)
	for _, s := range out {
		assert.InDelta(t, 0.5, s, 1e-6)
	}
}

func TestDownsampleInterpolates(t *testing.T) {
	// A slow linear ramp survives 3:1 downsampling almost exactly.
	frame := make(Frame, 300)
	for i := range frame {
		frame[i] = float32(i) / 300
	}

	out := Downsample(frame, 48000, 16000)
	require.Len(t, out, 100)
	for i, s := range out {
		expected := float32(i*3) / 300
		assert.InDelta(t, expected, s, 1e-3)
	}
}

func TestRMS(t *testing.T) {
	t.Run("empty frame", func(t *testing.T) {
		assert.Zero(t, RMS(nil))
	})

	t.Run("silence", func(t *testing.T) {
		assert.Zero(t, RMS(make(Frame, 100)))
	})

	t.Run("full-scale square wave", func(t *testing.T) {
		frame := Frame{1, -1, 1, -1}
		assert.InDelta(t, 1.0, RMS(frame), 1e-9)
	})

	t.Run("sine wave", func(t *testing.T) {
		frame := make(Frame, 1000)
		for i := range frame {
			frame[i] = float32(math.Sin(2 * math.Pi * float64(i) / 100))
		}
		assert.InDelta(t, 1/math.Sqrt2, RMS(frame), 0.01)
	})
}
