package metrics

import "time"

// NoopMetrics does nothing. Used when metrics are disabled and in tests.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordFailedAttempt(source string)                      {}
func (n *NoopMetrics) RecordLockout(lockoutCount int, duration time.Duration) {}
func (n *NoopMetrics) RecordLockoutCleared(reason string)                     {}
func (n *NoopMetrics) RecordLockedRejection()                                 {}
func (n *NoopMetrics) RecordRateLimited(scope string)                         {}
func (n *NoopMetrics) RecordResetStep(step, result string)                    {}
func (n *NoopMetrics) RecordLogin(result string, duration time.Duration)      {}
