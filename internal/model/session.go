package model

import "time"

// Status represents the lifecycle state of a separation session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusNotFound is returned for sessions the store has no record of.
	// It is a value, not an error: polling an unknown session is legal.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobState is the per-session separation state. Exactly one worker writes
// it; any number of pollers read it.
type JobState struct {
	SessionID string    `json:"sessionId"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stem names in the order the separation model emits them.
const (
	StemVocals = "vocals"
	StemDrums  = "drums"
	StemBass   = "bass"
	StemOther  = "other"
)

// StemNames lists the four stems every completed session has.
var StemNames = []string{StemVocals, StemDrums, StemBass, StemOther}
