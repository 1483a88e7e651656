package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelayMs    int  // Base delay in milliseconds
	RandomDelayMs  int  // Random delay range in milliseconds
	DelayOnSuccess bool // If true, delay even on successful login
}

// TimingDelay pads authentication responses so that an unknown account, a
// wrong password and a locked account take about the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(ctx context.Context, d time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	d := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if n, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			d += time.Duration(n) * time.Millisecond
		}
	}
	return d
}

// Wait sleeps base + random delay unless success is true and DelayOnSuccess is off.
// It returns early if ctx is cancelled.
func (td *TimingDelay) Wait(ctx context.Context, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}
	td.sleep(ctx, td.target())
}

// WaitFrom pads so that the time since startTime reaches the target delay.
func (td *TimingDelay) WaitFrom(ctx context.Context, startTime time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}
	td.sleep(ctx, td.target()-time.Since(startTime))
}
