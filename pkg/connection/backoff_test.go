package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i+1)
	}
	assert.Equal(t, len(want), b.Attempts())
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff()

	for i := 0; i < 100; i++ {
		b.Reset()
		d := b.Next()
		assert.GreaterOrEqual(t, d, InitialBackoff)
		assert.LessOrEqual(t, d, InitialBackoff+time.Duration(float64(InitialBackoff)*JitterFactor))
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Max: 10 * time.Second})
	b.Next()
	b.Next()
	require.Equal(t, 4*time.Second, b.Current())

	b.Reset()
	assert.Equal(t, time.Second, b.Current())
	assert.Equal(t, 0, b.Attempts())
}

func TestBackoffConfigDefaults(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})
	assert.Equal(t, InitialBackoff, b.Current())
	assert.Equal(t, MaxBackoff, b.max)
	assert.Equal(t, BackoffMultiplier, b.multiplier)
	assert.Zero(t, b.jitter)

	b = NewBackoffWithConfig(BackoffConfig{Initial: 5 * time.Second, Max: time.Second})
	assert.Equal(t, 5*time.Second, b.max)
}

func TestBackoffWait(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: 10 * time.Millisecond, Jitter: 0})

	start := time.Now()
	require.NoError(t, b.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b = NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}
