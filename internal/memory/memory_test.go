package memory

import (
	"context"
	"math"
	"runtime/debug"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restoreMemoryLimit resets the process-wide limit changed by a test.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		cfg        envConfig
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{
			name:       "nothing set",
			cfg:        envConfig{MemoryRatio: DefaultMemoryRatio},
			wantSource: "none",
		},
		{
			name:       "container limit with default ratio",
			cfg:        envConfig{MemoryLimit: 1 << 30, MemoryRatio: DefaultMemoryRatio},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  int64(float64(1<<30) * DefaultMemoryRatio),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "custom ratio",
			cfg:        envConfig{MemoryLimit: 4 << 30, MemoryRatio: 0.5},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  2 << 30,
			wantRatio:  0.5,
		},
		{
			name:       "ratio out of range falls back",
			cfg:        envConfig{MemoryLimit: 4 << 30, MemoryRatio: 1.5},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  int64(float64(4<<30) * DefaultMemoryRatio),
			wantRatio:  DefaultMemoryRatio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)

			result := configure(tt.cfg)

			assert.Equal(t, tt.wantSource, result.Source)
			assert.Equal(t, tt.wantLimit, result.GoMemLimit)
			assert.InDelta(t, tt.wantRatio, result.Ratio, 1e-9)
			if tt.wantLimit > 0 {
				assert.True(t, result.Configured)
				assert.Equal(t, tt.wantLimit, debug.SetMemoryLimit(-1))
			}
		})
	}
}

func TestConfigureReportsGoMemLimit(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(512 << 20)

	result := configure(envConfig{GoMemLimit: "512MiB", MemoryLimit: 1 << 30})

	assert.Equal(t, "GOMEMLIMIT", result.Source)
	assert.True(t, result.Configured)
	assert.Equal(t, int64(512<<20), result.GoMemLimit)
}

func TestConfigureFromEnv(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "4294967296")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()

	assert.Equal(t, "MEMORY_LIMIT", result.Source)
	assert.Equal(t, int64(2<<30), result.GoMemLimit)
}

func TestConfigureFromEnvInvalid(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	result := ConfigureFromEnv()

	assert.False(t, result.Configured)
	assert.Equal(t, "none", result.Source)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func newTestMonitor(limit int64, usage *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{LimitBytes: limit, ResumeMark: 0.5, PauseMark: 0.8, CheckInterval: time.Hour})
	m.sample = usage.Load
	return m
}

func TestMonitorPausesAndResumes(t *testing.T) {
	var usage atomic.Uint64
	m := newTestMonitor(1000, &usage)
	defer m.Stop()

	usage.Store(100)
	m.check()
	assert.False(t, m.Paused())
	assert.InDelta(t, 0.1, m.Usage(), 1e-9)
	require.NoError(t, m.Wait(context.Background()))

	usage.Store(900)
	m.check()
	require.True(t, m.Paused())

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	// Between the marks stays paused
	usage.Store(600)
	m.check()
	assert.True(t, m.Paused())

	usage.Store(400)
	m.check()
	assert.False(t, m.Paused())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	var usage atomic.Uint64
	m := newTestMonitor(1000, &usage)
	defer m.Stop()

	usage.Store(950)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	var usage atomic.Uint64
	m := newTestMonitor(1000, &usage)

	usage.Store(950)
	m.check()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not release waiter")
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(math.MaxInt64)

	m := NewMonitor(DefaultConfig())
	m.Start()
	defer m.Stop()

	assert.Zero(t, m.Usage())
	assert.False(t, m.Paused())
	assert.NoError(t, m.Wait(context.Background()))
}
