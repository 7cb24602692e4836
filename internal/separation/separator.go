package separation

import (
	"context"

	"github.com/humanmixer/api/internal/audio"
)

// TaskTypeSeparation is the asynq task type for one separation run.
const TaskTypeSeparation = "separation:process"

// Separator is the external source-separation function: given a prepared
// stereo waveform it returns exactly four stems (vocals, drums, bass,
// other) at the same sample rate, up to a few samples of framing slack.
// The call dominates wall-clock cost and is the sole CPU-bound dependency.
type Separator interface {
	Separate(ctx context.Context, input *audio.Waveform) (*audio.StemSet, error)
}
