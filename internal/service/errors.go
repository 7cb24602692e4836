package service

import "errors"

// Error kinds returned synchronously to callers. Failures inside the
// separation worker are never surfaced here; they are recorded in the
// session's JobState instead, because the request that started the job
// has already returned.
var (
	// ErrInvalidInput means the upload was empty or not decodable audio.
	ErrInvalidInput = errors.New("invalid input audio")

	// ErrNotFound means the session id is unknown.
	ErrNotFound = errors.New("session not found")

	// ErrStemsNotReady means a mix was requested before separation completed.
	ErrStemsNotReady = errors.New("stems not ready")

	// ErrCorrupted means the job reported success but a stem file is missing.
	ErrCorrupted = errors.New("session stems corrupted")

	// ErrSilentMix means the gain-adjusted sum was all zeros and cannot be
	// normalized.
	ErrSilentMix = errors.New("mix is silent")

	// ErrSessionFinished means cancel was requested for a terminal session.
	ErrSessionFinished = errors.New("session already finished")
)

// CancelledMessage is recorded in JobState when a session is cancelled.
const CancelledMessage = "cancelled by user"
