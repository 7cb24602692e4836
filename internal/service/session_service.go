package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/humanmixer/api/internal/audio"
	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/progress"
	"github.com/humanmixer/api/internal/separation"
	"github.com/humanmixer/api/internal/stems"
)

// SessionService owns the session lifecycle: it mints session ids,
// persists uploads, queues separation work and answers status queries.
// Sessions are single-shot; every upload gets a fresh id, so a second
// start can never silently restart a running job.
type SessionService struct {
	progress    *progress.Store
	stems       *stems.Repository
	asynqClient *asynq.Client
}

func NewSessionService(progressStore *progress.Store, stemRepo *stems.Repository, asynqClient *asynq.Client) *SessionService {
	return &SessionService{
		progress:    progressStore,
		stems:       stemRepo,
		asynqClient: asynqClient,
	}
}

// StartSeparation persists the upload, initializes job state and enqueues
// a separation task. It returns before any separation work happens;
// callers discover completion by polling GetProgress.
func (s *SessionService) StartSeparation(ctx context.Context, upload io.Reader) (*model.SeparationStartResponse, error) {
	sessionID := uuid.New().String()

	n, err := s.stems.SaveInput(sessionID, upload)
	if err != nil {
		_ = s.stems.Purge(sessionID)
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if n == 0 {
		_ = s.stems.Purge(sessionID)
		return nil, fmt.Errorf("%w: upload is empty", ErrInvalidInput)
	}
	if err := audio.ProbeFile(s.stems.InputPath(sessionID)); err != nil {
		_ = s.stems.Purge(sessionID)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.progress.Init(ctx, sessionID); err != nil {
		_ = s.stems.Purge(sessionID)
		return nil, fmt.Errorf("init job state: %w", err)
	}

	payload, err := json.Marshal(model.SeparationTaskPayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}

	// MaxRetry(0): a failed separation stays failed; rerunning requires a
	// new session.
	task := asynq.NewTask(separation.TaskTypeSeparation, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("separation"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	); err != nil {
		_ = s.progress.Fail(ctx, sessionID, "failed to queue separation")
		return nil, fmt.Errorf("enqueue separation task: %w", err)
	}

	return &model.SeparationStartResponse{
		SessionID: sessionID,
		Status:    "processing",
	}, nil
}

// GetProgress is a pure read of the progress store; unknown sessions
// report StatusNotFound. Safe to call arbitrarily often and concurrently.
func (s *SessionService) GetProgress(ctx context.Context, sessionID string) (model.JobState, error) {
	return s.progress.Get(ctx, sessionID)
}

// Cancel marks a non-terminal session failed with a cancellation reason.
// The worker observes the terminal state at its next checkpoint and
// abandons the run; partial stems are never exposed as completed.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (*model.SeparationCancelResponse, error) {
	state, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.StatusNotFound {
		return nil, ErrNotFound
	}
	if state.Status.Terminal() {
		return nil, ErrSessionFinished
	}

	if err := s.progress.Fail(ctx, sessionID, CancelledMessage); err != nil {
		// Completion won the race after the Get; the stems are final.
		if errors.Is(err, progress.ErrNotWritable) {
			return nil, ErrSessionFinished
		}
		return nil, err
	}

	return &model.SeparationCancelResponse{
		Success:   true,
		SessionID: sessionID,
		Status:    model.StatusFailed,
	}, nil
}

// Cleanup purges a session's stems, mixes and progress record. Sessions
// are destroyed only through this explicit policy, never on read.
func (s *SessionService) Cleanup(ctx context.Context, sessionID string) error {
	state, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if state.Status == model.StatusNotFound {
		return ErrNotFound
	}

	if err := s.stems.Purge(sessionID); err != nil {
		return err
	}
	return s.progress.Delete(ctx, sessionID)
}
