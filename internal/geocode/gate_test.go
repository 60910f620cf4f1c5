package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSpacesConcurrentCallers(t *testing.T) {
	t.Parallel()

	const interval = 50 * time.Millisecond
	gate := NewGate(interval)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(context.Background()))
		}()
	}
	wg.Wait()

	// first caller passes immediately, the other three wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 3*interval-5*time.Millisecond)
}

func TestGateHonoursContext(t *testing.T) {
	t.Parallel()

	gate := NewGate(time.Hour)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, gate.Wait(ctx))
}

func TestGateZeroIntervalDoesNotBlock(t *testing.T) {
	t.Parallel()

	gate := NewGate(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}
