package models

import "time"

// LockoutRecord exists only while an identity is considered locked
type LockoutRecord struct {
	Identity           string    `db:"identity"`
	LockedAt           time.Time `db:"locked_at"`
	UnlockAt           time.Time `db:"unlock_at"`
	FailedAttemptCount int       `db:"failed_attempt_count"`
	LockoutCount       int       `db:"lockout_count"`
}

// IsExpired reports whether the lock has run out at the given instant
func (r *LockoutRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.UnlockAt)
}

// LockStatus is the result of a lock check
type LockStatus struct {
	Locked           bool       `json:"locked"`
	UnlockAt         *time.Time `json:"unlock_at,omitempty"`
	RemainingMinutes int        `json:"remaining_minutes,omitempty"`
	LockoutCount     int        `json:"lockout_count,omitempty"`
}

// Err converts a locked status into a *LockedOutError, or nil when unlocked
func (s LockStatus) Err() error {
	if !s.Locked || s.UnlockAt == nil {
		return nil
	}
	return &LockedOutError{
		UnlockAt:         *s.UnlockAt,
		RemainingMinutes: s.RemainingMinutes,
		LockoutCount:     s.LockoutCount,
	}
}

// RateLimitWindow describes the state of one limiter key
type RateLimitWindow struct {
	Key           string
	Count         int64
	Limit         int64
	WindowResetAt time.Time
	Limited       bool
}
