package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/humanmixer/api/internal/audio"
	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/progress"
	"github.com/humanmixer/api/internal/separation"
	"github.com/humanmixer/api/internal/stems"
	"github.com/humanmixer/api/internal/websocket"
)

// errAbandoned signals that the session was cancelled and the run should
// stop without touching its terminal state.
var errAbandoned = errors.New("separation abandoned")

// Checkpoint values mirror the real cost centers of a run rather than
// arbitrary ticks: the bulk of wall-clock time sits between 0.40 and 0.80.
var stemCheckpoints = [4]float64{0.85, 0.90, 0.95, 1.00}

// SeparationWorker executes the separation pipeline for exactly one
// session per task. It is the sole writer of that session's JobState;
// failures are captured here and recorded, never re-thrown across the
// asynchronous boundary.
type SeparationWorker struct {
	progress  *progress.Store
	stems     *stems.Repository
	separator separation.Separator
	hub       *websocket.Hub
}

// NewSeparationWorker creates a new separation worker.
func NewSeparationWorker(progressStore *progress.Store, stemRepo *stems.Repository, sep separation.Separator, hub *websocket.Hub) *SeparationWorker {
	return &SeparationWorker{
		progress:  progressStore,
		stems:     stemRepo,
		separator: sep,
		hub:       hub,
	}
}

// ProcessTask handles one separation task.
func (w *SeparationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SeparationTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal separation payload: %w", err)
	}
	sessionID := payload.SessionID
	log.Printf("Starting separation for session %s", sessionID)

	err := w.run(ctx, sessionID)
	switch {
	case err == nil:
		log.Printf("Separation for session %s completed", sessionID)
		return nil
	case errors.Is(err, errAbandoned):
		log.Printf("Separation for session %s abandoned (cancelled)", sessionID)
		return nil
	default:
		log.Printf("Separation for session %s failed: %v", sessionID, err)
		w.failSession(ctx, sessionID, err)
		return err
	}
}

func (w *SeparationWorker) run(ctx context.Context, sessionID string) error {
	inputPath := w.stems.InputPath(sessionID)
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input not readable: %w", err)
	}
	if err := w.checkpoint(ctx, sessionID, 0.10); err != nil {
		return err
	}

	wave, err := audio.DecodeFile(inputPath)
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	if err := w.checkpoint(ctx, sessionID, 0.20); err != nil {
		return err
	}

	// The separation model expects stereo input.
	wave = wave.UpmixToStereo()
	if err := w.checkpoint(ctx, sessionID, 0.30); err != nil {
		return err
	}

	if err := w.checkpoint(ctx, sessionID, 0.40); err != nil {
		return err
	}
	set, err := w.separator.Separate(ctx, wave)
	if err != nil {
		return fmt.Errorf("separation failed: %w", err)
	}
	if err := w.checkpoint(ctx, sessionID, 0.80); err != nil {
		return err
	}

	for i, name := range model.StemNames {
		stem := set.Stem(name)
		if stem == nil || stem.Len() == 0 {
			return fmt.Errorf("separator returned no %s stem", name)
		}
		if err := audio.EncodeFile(w.stems.StemPath(sessionID, name), stem); err != nil {
			return fmt.Errorf("persist %s stem: %w", name, err)
		}
		if err := w.checkpoint(ctx, sessionID, stemCheckpoints[i]); err != nil {
			return err
		}
	}

	if err := w.progress.Complete(ctx, sessionID); err != nil {
		if errors.Is(err, progress.ErrNotWritable) {
			return errAbandoned
		}
		return fmt.Errorf("record completion: %w", err)
	}
	w.hub.BroadcastComplete(sessionID, model.JobState{
		SessionID: sessionID,
		Status:    model.StatusCompleted,
		Progress:  1.0,
	})
	return nil
}

// checkpoint advances the session's progress, observing cancellation: a
// session already in a failed state (cancelled) stops the run at the next
// checkpoint boundary.
func (w *SeparationWorker) checkpoint(ctx context.Context, sessionID string, p float64) error {
	state, err := w.progress.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if state.Status == model.StatusFailed {
		return errAbandoned
	}

	if err := w.progress.SetProgress(ctx, sessionID, model.StatusRunning, p); err != nil {
		if errors.Is(err, progress.ErrNotWritable) {
			return errAbandoned
		}
		return err
	}
	w.hub.BroadcastProgress(sessionID, p, model.StatusRunning)
	return nil
}

func (w *SeparationWorker) failSession(ctx context.Context, sessionID string, cause error) {
	if err := w.progress.Fail(ctx, sessionID, cause.Error()); err != nil {
		log.Printf("Failed to record failure for session %s: %v", sessionID, err)
	}
	w.hub.BroadcastError(sessionID, "SEPARATION_FAILED", cause.Error())
}
