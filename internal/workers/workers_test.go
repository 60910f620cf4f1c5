package workers

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound task (1.0x multiplier)", 1.0, 0, 1, availableCPU},
		{"I/O-bound task (2.0x multiplier)", 2.0, 0, 1, availableCPU * 2},
		{"With limit lower than calculated", 2.0, 2, 1, 2},
		{"Very low multiplier", 0.1, 0, 1, max(1, int(float64(availableCPU)*0.1))},
		{"Zero multiplier", 0.0, 0, 1, 1},
		{"Negative multiplier", -1.0, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			assert.GreaterOrEqual(t, got, tt.minExpect)
			assert.LessOrEqual(t, got, tt.maxExpect)
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	fallback := runtime.GOMAXPROCS(0)

	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{"Valid override", "8", 0, 8},
		{"Override with limit", "20", 10, 10},
		{"Override below limit", "5", 10, 5},
		{"Invalid override (non-numeric)", "invalid", 0, fallback},
		{"Invalid override (zero)", "0", 0, fallback},
		{"Invalid override (negative)", "-5", 0, fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.envValue)
			assert.Equal(t, tt.expected, Count(1.0, tt.limit))
		})
	}
}

func TestForIOAndForCPU(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	assert.Equal(t, 1, ForCPU(1))
	assert.LessOrEqual(t, ForIO(4), 4)
	assert.GreaterOrEqual(t, ForIO(0), ForCPU(0))
}
