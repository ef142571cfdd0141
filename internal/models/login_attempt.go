package models

import (
	"strings"
	"time"
)

// Attempt sources recorded in the ledger
const (
	AttemptSourceLogin            = "login"
	AttemptSourceSecurityQuestion = "security_question"
)

// FailedAttempt is a single failed authentication attempt. Rows are append-only.
type FailedAttempt struct {
	ID          int64     `db:"id"`
	Identity    string    `db:"identity"`
	Source      string    `db:"source"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// Identity is a user known to the identity store
type Identity struct {
	ID    string
	Email string
	Role  string
}

// NormalizeIdentity returns the canonical identity key for an email address
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
