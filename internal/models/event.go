package models

import "time"

type AuthEventType string

const (
	EventSessionIssued        AuthEventType = "session_issued"
	EventSessionRotated       AuthEventType = "session_rotated"
	EventSessionRevoked       AuthEventType = "session_revoked"
	EventSessionReuseRejected AuthEventType = "session_reuse_rejected"
)

type AuthEvent struct {
	ID         int64         `json:"id,omitempty"`
	Type       AuthEventType `json:"event_type"`
	Subject    string        `json:"user_id"`
	SessionID  string        `json:"session_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// RevocationRequest is published by other services to end a session remotely.
type RevocationRequest struct {
	Subject   string `json:"user_id"`
	SessionID string `json:"session_id"`
}
