package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNormalWindow(t *testing.T) {
	now := time.Unix(10_000, 0)
	cfg := DefaultConfig()
	start, end, ok := Compute(float64(now.Unix())-3600, now, cfg)
	require.True(t, ok, "expected ok window")
	assert.Greater(t, start, float64(now.Unix())-3600)
	assert.Equal(t, float64(now.Unix()), end)
}

func TestComputeTooSmallWindow(t *testing.T) {
	now := time.Unix(10_000, 0)
	cfg := DefaultConfig()
	_, _, ok := Compute(float64(now.Unix())-1, now, cfg)
	assert.False(t, ok, "expected window below MinLength to be rejected")
}

func TestComputeClampsToMaxLength(t *testing.T) {
	now := time.Unix(100_000, 0)
	cfg := Config{MinLength: time.Second, MaxLength: time.Hour}
	start, end, ok := Compute(0, now, cfg)
	require.True(t, ok, "expected ok window")
	assert.Equal(t, cfg.MaxLength.Seconds(), end-start)
}

func TestWaitForWindowReturnsImmediatelyWhenWideEnough(t *testing.T) {
	cfg := Config{MinLength: time.Second, MaxLength: time.Hour}
	start, end, err := WaitForWindow(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.Greater(t, end, start)
}

func TestWaitForWindowReturnsCtxErrWhenCancelled(t *testing.T) {
	cfg := Config{MinLength: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := WaitForWindow(ctx, float64(time.Now().Unix()), cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeEndOffset(t *testing.T) {
	now := time.Unix(100_000, 0)
	cfg := Config{MinLength: time.Second, MaxLength: time.Hour, EndOffset: 5 * time.Minute}
	_, end, ok := Compute(float64(now.Unix())-1800, now, cfg)
	require.True(t, ok, "expected ok window")
	want := float64(now.Unix()) - (5 * time.Minute).Seconds()
	assert.Equal(t, want, end)
}
