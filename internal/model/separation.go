package model

// SeparationStartResponse is returned when an upload is accepted and its
// separation job has been queued.
type SeparationStartResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// SeparationProgressResponse is the polling contract: status is one of
// "idle", "processing", "completed" or "error".
type SeparationProgressResponse struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
}

// SeparationCancelResponse is returned when a running session is cancelled.
type SeparationCancelResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Status    Status `json:"status"`
}

// ProgressResponse maps internal job state onto the public polling states.
// Unknown sessions report idle with zero progress, matching what a client
// sees before it has ever uploaded anything.
func ProgressResponse(state JobState) SeparationProgressResponse {
	switch state.Status {
	case StatusCompleted:
		return SeparationProgressResponse{Progress: state.Progress, Status: "completed"}
	case StatusFailed:
		return SeparationProgressResponse{Progress: state.Progress, Status: "error", Error: state.Error}
	case StatusPending, StatusRunning:
		return SeparationProgressResponse{Progress: state.Progress, Status: "processing"}
	default:
		return SeparationProgressResponse{Progress: 0, Status: "idle"}
	}
}

// SeparationTaskPayload is the asynq task body for one separation run.
type SeparationTaskPayload struct {
	SessionID string `json:"sessionId"`
}
