package models

import "time"

// Security event types published to the event stream
const (
	EventAccountLocked   = "account.locked"
	EventAccountUnlocked = "account.unlocked"
	EventPasswordReset   = "password.reset"
)

// SecurityEvent is an account-security state change worth telling other systems about
type SecurityEvent struct {
	Type       string            `json:"type"`
	Identity   string            `json:"identity"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
