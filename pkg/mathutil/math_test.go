package mathutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAbsDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		expected time.Duration
	}{
		{"positive", 5 * time.Second, 5 * time.Second},
		{"negative", -5 * time.Second, 5 * time.Second},
		{"zero", 0, 0},
		{"negative nanosecond", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AbsDuration(tt.input))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestCoherence(t *testing.T) {
	scale := 50 * time.Millisecond

	tests := []struct {
		name       string
		divergence time.Duration
		expected   float64
	}{
		{"identical", 0, 1.0},
		{"below perfect", 500 * time.Microsecond, 1.0},
		{"excellent boundary", 5 * time.Millisecond, 0.9},
		{"good boundary", 10 * time.Millisecond, 0.7},
		{"midpoint", 30 * time.Millisecond, 0.6},
		{"scale", 50 * time.Millisecond, 0.5},
		{"negative divergence", -10 * time.Millisecond, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Coherence(tt.divergence, scale), 1e-9)
		})
	}
}

func TestCoherence_Decay(t *testing.T) {
	scale := 50 * time.Millisecond

	prev := Coherence(scale, scale)
	for _, d := range []time.Duration{60, 100, 250, 1000, 10000} {
		c := Coherence(d*time.Millisecond, scale)
		assert.Less(t, c, prev)
		assert.GreaterOrEqual(t, c, 0.0)
		prev = c
	}
}

func TestCoherence_InvalidScale(t *testing.T) {
	assert.Equal(t, 0.0, Coherence(time.Millisecond, 0))
}
