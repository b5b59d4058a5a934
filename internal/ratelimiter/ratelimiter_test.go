package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurst(t *testing.T) {
	rl := New(10, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "request %d within burst should pass", i)
	}
	assert.False(t, rl.Allow(), "request beyond burst should be rejected")
}

func TestZeroRateIsUnlimited(t *testing.T) {
	rl := New(0, 0)

	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow())
	}
}

func TestTokensRefill(t *testing.T) {
	rl := New(100, 1)

	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	// 100 req/s refills one token within 10ms.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestWaitRespectsCancellation(t *testing.T) {
	rl := New(1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReturnsWhenTokenAvailable(t *testing.T) {
	rl := New(1000, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, rl.Wait(ctx))
}
