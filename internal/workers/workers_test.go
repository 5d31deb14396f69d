package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{name: "CPU-bound", multiplier: 1.0, limit: 0, want: availableCPU},
		{name: "I/O-bound", multiplier: 2.0, limit: 0, want: availableCPU * 2},
		{name: "Mixed", multiplier: 1.5, limit: 0, want: max(1, int(float64(availableCPU)*1.5))},
		{name: "Limit caps result", multiplier: 100, limit: 2, want: 2},
		{name: "Tiny multiplier floors at one", multiplier: 0.0001, limit: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		want     int
	}{
		{name: "Valid override", envValue: "3", limit: 0, want: 3},
		{name: "Override capped by limit", envValue: "16", limit: 4, want: 4},
		{name: "Zero ignored", envValue: "0", limit: 0, want: runtime.GOMAXPROCS(0)},
		{name: "Negative ignored", envValue: "-2", limit: 0, want: runtime.GOMAXPROCS(0)},
		{name: "Garbage ignored", envValue: "lots", limit: 0, want: runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.envValue)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count(1.0, %d) with %s=%q = %d, want %d", tt.limit, OverrideEnv, tt.envValue, got, tt.want)
			}
		})
	}
}

func TestForScan(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	tests := []struct {
		name       string
		configured int
		limit      int
		want       int
	}{
		{name: "Configured value wins", configured: 5, limit: 0, want: 5},
		{name: "Configured value capped", configured: 50, limit: 8, want: 8},
		{name: "Zero falls back to heuristic", configured: 0, limit: 0, want: ForMixed(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForScan(tt.configured, tt.limit); got != tt.want {
				t.Errorf("ForScan(%d, %d) = %d, want %d", tt.configured, tt.limit, got, tt.want)
			}
		})
	}
}
