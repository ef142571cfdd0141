package metrics

import "time"

// Recorder records account-security metrics. Implemented by *Metrics and *NoopMetrics.
type Recorder interface {
	RecordFailedAttempt(source string)
	RecordLockout(lockoutCount int, duration time.Duration)
	RecordLockoutCleared(reason string)
	RecordLockedRejection()
	RecordRateLimited(scope string)
	RecordResetStep(step, result string)
	RecordLogin(result string, duration time.Duration)
}
