package separation

import (
	"context"

	"github.com/humanmixer/api/internal/audio"
)

// Stub is a deterministic Separator used when no separation service is
// configured and by tests: each stem is the input scaled by a fixed
// factor, so the gain-weighted sum of the stems reconstructs a scaled
// copy of the original.
type Stub struct{}

// NewStub creates the fallback separator.
func NewStub() *Stub {
	return &Stub{}
}

var stubFactors = map[string]float64{
	"vocals": 0.4,
	"drums":  0.3,
	"bass":   0.2,
	"other":  0.1,
}

// Separate returns four scaled copies of the input.
func (s *Stub) Separate(ctx context.Context, input *audio.Waveform) (*audio.StemSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled := func(factor float64) *audio.Waveform {
		w := input.Clone()
		w.Scale(factor)
		return w
	}
	return &audio.StemSet{
		Vocals: scaled(stubFactors["vocals"]),
		Drums:  scaled(stubFactors["drums"]),
		Bass:   scaled(stubFactors["bass"]),
		Other:  scaled(stubFactors["other"]),
	}, nil
}
