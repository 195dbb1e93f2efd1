// Package events defines bridge event types and the publishers that emit them.
package events

// Lifecycle states reported in LifecycleEvent.
const (
	LifecycleStarted = "started"
	LifecycleStopped = "stopped"
)

// CommandCompletedEvent is emitted after a queued command has been resolved.
type CommandCompletedEvent struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"durationMs"`
	Timestamp  string  `json:"timestamp"`
}

// LifecycleEvent is emitted when the bridge listener starts or stops.
type LifecycleEvent struct {
	State           string `json:"state"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ProtocolVersion string `json:"protocolVersion"`
	Timestamp       string `json:"timestamp"`
}
