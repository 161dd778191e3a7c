// Package model defines the report payloads produced by a preload run.
// It keeps output types in one place for the CLI and the service.
package model

// Report is the outcome of one preload batch.
type Report struct {
	Status    string         `json:"status"` // "ok" | "error" | "incomplete"
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Errors    int            `json:"errors"`
	Percent   float64        `json:"percent"`
	Actions   []ActionResult `json:"actions,omitempty"`
	Error     *ErrorPayload  `json:"error,omitempty"`
}

// ActionResult captures the outcome of one tracked action.
type ActionResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`   // "image" | "audio"
	Status     string `json:"status"` // "ok" | "error" | "timeout" | "pending"
	DurationMS int64  `json:"duration_ms"`
	Bytes      int64  `json:"bytes,omitempty"`
	Detail     string `json:"detail,omitempty"` // error kind or message
}

// ErrorPayload describes a batch-level failure.
type ErrorPayload struct {
	Kind    string `json:"kind"`              // "deadline", "load_failed"
	Message string `json:"message,omitempty"` // optional, human-readable error message
}
