package websocket

import "time"

// Event types sent to clients
const (
	TypeConnection      = "connection"
	TypeAnalysisCreated = "analysis:created"
	TypeAnalysisUpdated = "analysis:updated"
	TypeAnalysisDeleted = "analysis:deleted"
)

// Message is the envelope of every event
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}
