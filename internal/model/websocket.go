package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a separation progress update
type WSProgressMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Progress  float64 `json:"progress"`
	Status    Status  `json:"status"`
}

// WSCompleteMessage represents separation completion
type WSCompleteMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Result    interface{} `json:"result"`
}

// WSErrorMessage represents a separation failure
type WSErrorMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Error     WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
