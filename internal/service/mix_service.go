package service

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/humanmixer/api/internal/audio"
	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/progress"
	"github.com/humanmixer/api/internal/stems"
)

// MixService recombines a completed session's stems with per-stem dB
// gains into a fresh peak-normalized WAV. It never blocks on a running
// separation; unfinished sessions fail fast.
type MixService struct {
	progress *progress.Store
	stems    *stems.Repository
}

func NewMixService(progressStore *progress.Store, stemRepo *stems.Repository) *MixService {
	return &MixService{
		progress: progressStore,
		stems:    stemRepo,
	}
}

// Mix produces one normalized mix output and returns its public path.
// Nothing is written on any failure path.
func (s *MixService) Mix(ctx context.Context, req *model.MixRequest) (*model.MixResponse, error) {
	state, err := s.progress.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.StatusNotFound {
		return nil, ErrNotFound
	}
	if state.Status != model.StatusCompleted {
		return nil, ErrStemsNotReady
	}

	loaded := make([]*audio.Waveform, 0, len(model.StemNames))
	gains := make([]float64, 0, len(model.StemNames))
	for _, name := range model.StemNames {
		if !s.stems.HasStem(req.SessionID, name) {
			// The job reported success, so a missing file is corruption,
			// not an unfinished separation.
			return nil, fmt.Errorf("%w: missing %s stem", ErrCorrupted, name)
		}
		stem, err := audio.DecodeFile(s.stems.StemPath(req.SessionID, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s stem unreadable: %v", ErrCorrupted, name, err)
		}
		loaded = append(loaded, stem)
		gains = append(gains, audio.DBToLinear(req.Gains.Gain(name)))
	}

	mix, err := audio.MixDown(loaded, gains)
	if errors.Is(err, audio.ErrSilent) {
		return nil, ErrSilentMix
	}
	if err != nil {
		return nil, fmt.Errorf("mixdown: %w", err)
	}

	absPath, relPath := s.stems.NewMixPath(req.SessionID)
	if err := audio.EncodeFile(absPath, mix); err != nil {
		return nil, fmt.Errorf("write mix output: %w", err)
	}

	return &model.MixResponse{Path: path.Join("/files", relPath)}, nil
}
