package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_WaitFrom_PadsToFloor(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	start := time.Now()

	timing.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AccountsForElapsed(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})
	start := time.Now().Add(-80 * time.Millisecond)

	before := time.Now()
	timing.WaitFrom(context.Background(), start)
	waited := time.Since(before)

	assert.GreaterOrEqual(t, waited, 15*time.Millisecond)
	assert.Less(t, waited, 80*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AlreadySlow(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})
	start := time.Now().Add(-time.Second)

	before := time.Now()
	timing.WaitFrom(context.Background(), start)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_ContextCancelled(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	timing.WaitFrom(ctx, start)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimingDelay_Target_WithinRange(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 10, RandomDelayMs: 5})
	for i := 0; i < 50; i++ {
		d := timing.Target()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 15*time.Millisecond)
	}
}
