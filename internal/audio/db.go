package audio

import "math"

// DBToLinear converts a decibel gain to its linear multiplier:
// 0 dB -> 1, +20 dB -> 10, -Inf dB -> 0.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
