package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrSilent is returned when a mixdown sums to all-zero samples and
// peak normalization would divide by zero.
var ErrSilent = errors.New("mix is silent")

// Waveform holds PCM audio as float64 samples in [-1, 1], one slice per
// channel.
type Waveform struct {
	SampleRate int
	Data       [][]float64
}

// Channels returns the channel count.
func (w *Waveform) Channels() int {
	return len(w.Data)
}

// Len returns the per-channel sample count.
func (w *Waveform) Len() int {
	if len(w.Data) == 0 {
		return 0
	}
	return len(w.Data[0])
}

// Clone returns a deep copy.
func (w *Waveform) Clone() *Waveform {
	data := make([][]float64, len(w.Data))
	for c, ch := range w.Data {
		data[c] = make([]float64, len(ch))
		copy(data[c], ch)
	}
	return &Waveform{SampleRate: w.SampleRate, Data: data}
}

// Scale multiplies every sample by factor, in place.
func (w *Waveform) Scale(factor float64) {
	for _, ch := range w.Data {
		for i := range ch {
			ch[i] *= factor
		}
	}
}

// Peak returns the maximum absolute sample value across all channels.
func (w *Waveform) Peak() float64 {
	peak := 0.0
	for _, ch := range w.Data {
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// UpmixToStereo duplicates a mono signal into two channels. Signals that
// already have two or more channels are returned unchanged; the separation
// model requires stereo input.
func (w *Waveform) UpmixToStereo() *Waveform {
	if len(w.Data) != 1 {
		return w
	}
	left := w.Data[0]
	right := make([]float64, len(left))
	copy(right, left)
	return &Waveform{SampleRate: w.SampleRate, Data: [][]float64{left, right}}
}

// StemSet holds the four separated stems of one session at a shared
// sample rate.
type StemSet struct {
	Vocals *Waveform
	Drums  *Waveform
	Bass   *Waveform
	Other  *Waveform
}

// Stem returns the waveform for a stem name, or nil for unknown names.
func (s *StemSet) Stem(name string) *Waveform {
	switch name {
	case "vocals":
		return s.Vocals
	case "drums":
		return s.Drums
	case "bass":
		return s.Bass
	case "other":
		return s.Other
	default:
		return nil
	}
}

// MixDown applies one linear gain per stem, truncates all stems to the
// shortest length, sums them sample-wise and peak-normalizes the result so
// its maximum absolute sample is 1.0. Stems may differ in length by a few
// samples due to model framing; truncation (never padding) keeps the sum
// well defined. An all-zero sum returns ErrSilent instead of dividing by
// zero.
func MixDown(stems []*Waveform, gains []float64) (*Waveform, error) {
	if len(stems) == 0 || len(stems) != len(gains) {
		return nil, fmt.Errorf("mixdown needs one gain per stem, got %d stems and %d gains", len(stems), len(gains))
	}

	channels := stems[0].Channels()
	sampleRate := stems[0].SampleRate
	minLen := stems[0].Len()
	for _, stem := range stems[1:] {
		if stem.Channels() != channels {
			return nil, fmt.Errorf("stem channel counts differ: %d vs %d", channels, stem.Channels())
		}
		if stem.SampleRate != sampleRate {
			return nil, fmt.Errorf("stem sample rates differ: %d vs %d", sampleRate, stem.SampleRate)
		}
		if n := stem.Len(); n < minLen {
			minLen = n
		}
	}
	if channels == 0 || minLen == 0 {
		return nil, ErrSilent
	}

	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, minLen)
	}
	for s, stem := range stems {
		gain := gains[s]
		for c := 0; c < channels; c++ {
			ch := stem.Data[c]
			for i := 0; i < minLen; i++ {
				out[c][i] += ch[i] * gain
			}
		}
	}

	mix := &Waveform{SampleRate: sampleRate, Data: out}
	peak := mix.Peak()
	if peak == 0 {
		return nil, ErrSilent
	}
	mix.Scale(1 / peak)
	return mix, nil
}
