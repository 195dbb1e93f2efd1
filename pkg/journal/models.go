package journal

import "time"

// CommandRecord is one row of command_journal.
type CommandRecord struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMs  float64   `json:"durationMs"`
	CompletedAt time.Time `json:"completedAt"`
}
