package mathutil

import (
	"math"
	"time"
)

// AbsDuration returns the absolute value of a duration
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Clamp clamps a value between min and max
func Clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Coherence scores how well two clock offsets agree, from 1 (identical) down
// towards 0. The score is piecewise linear: 1.0 below scale/50, 0.9 at
// scale/10, 0.7 at scale/5 and 0.5 at scale, then decays exponentially.
func Coherence(divergence, scale time.Duration) float64 {
	if scale <= 0 {
		return 0
	}

	d := AbsDuration(divergence).Seconds()
	s := scale.Seconds()

	perfect := s / 50
	excellent := s / 10
	good := s / 5

	switch {
	case d < perfect:
		return 1.0
	case d < excellent:
		return 1.0 - (d-perfect)/(excellent-perfect)*0.1
	case d < good:
		return 0.9 - (d-excellent)/(good-excellent)*0.2
	case d < s:
		return 0.7 - (d-good)/(s-good)*0.2
	default:
		return Clamp(0.5*math.Exp(-(d-s)/s), 0, 0.5)
	}
}
