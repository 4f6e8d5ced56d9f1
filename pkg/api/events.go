package api

import "time"

// EventType identifies a request lifecycle event.
type EventType string

const (
	EventSubmissionStarted   EventType = "submission.started"
	EventSubmissionCompleted EventType = "submission.completed"
	EventSubmissionFailed    EventType = "submission.failed"

	EventFetchFailed   EventType = "fetch.failed"
	EventViewRefreshed EventType = "view.refreshed"
)

// RequestEvent is a minimal append-only history record for audit/debugging.
type RequestEvent struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	At        time.Time `json:"at"`
	Type      EventType `json:"type"`

	// Optional context.
	StageID string `json:"stageId,omitempty"`

	// Small, human-oriented details (e.g. action, error string).
	// Do NOT dump form payloads here.
	Detail string `json:"detail,omitempty"`
}
