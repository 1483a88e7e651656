package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_Wait_OnFailure(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond) // generous upper bound for slow CI
}

func TestTimingDelay_Wait_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.Less(t, time.Since(startTime), 50*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_WithDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    100,
		DelayOnSuccess: true,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_Wait_StopsOnCancel(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 5000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	startTime := time.Now()
	timing.Wait(ctx, false)

	assert.Less(t, time.Since(startTime), time.Second)
}

func TestTimingDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})
	startTime := time.Now()

	// Simulate some work already done
	time.Sleep(50 * time.Millisecond)

	timing.WaitFrom(context.Background(), startTime, false)

	// Should total approximately 100ms (base), not 150ms
	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 145*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})
	startTime := time.Now()

	time.Sleep(100 * time.Millisecond)

	timing.WaitFrom(context.Background(), startTime, false)

	assert.Less(t, time.Since(startTime), 140*time.Millisecond)
}
