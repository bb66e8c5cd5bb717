package ratelimit

import (
	"testing"
	"time"
)

func TestCallLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *CallLimitState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &CallLimitState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &CallLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCallLimitState_Thresholds(t *testing.T) {
	tests := []struct {
		name           string
		used, max      int
		expectCritical bool
		expectThrottle bool
		expectHealthy  bool
	}{
		{name: "empty bucket", used: 0, max: 40, expectHealthy: true},
		{name: "half full", used: 20, max: 40, expectHealthy: true},
		{name: "at warning threshold", used: 32, max: 40, expectThrottle: true},
		{name: "just below critical", used: 37, max: 40, expectThrottle: true},
		{name: "at critical threshold", used: 38, max: 40, expectCritical: true},
		{name: "full", used: 40, max: 40, expectCritical: true},
		{name: "unknown max", used: 5, max: 0, expectHealthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &CallLimitState{Used: tt.used, Max: tt.max}
			state.UpdateHealth()

			if got := state.IsCritical(); got != tt.expectCritical {
				t.Errorf("IsCritical() = %v, want %v", got, tt.expectCritical)
			}
			if got := state.NeedsThrottling(); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if state.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectHealthy)
			}
		})
	}
}

func TestParseCallLimit(t *testing.T) {
	tests := []struct {
		value    string
		used     int
		max      int
		wantErr  bool
	}{
		{value: "32/40", used: 32, max: 40},
		{value: " 1 / 80 ", used: 1, max: 80},
		{value: "32", wantErr: true},
		{value: "a/40", wantErr: true},
		{value: "1/b", wantErr: true},
		{value: "1/0", wantErr: true},
		{value: "-1/40", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			used, max, err := ParseCallLimit(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCallLimit(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && (used != tt.used || max != tt.max) {
				t.Errorf("ParseCallLimit(%q) = %d/%d, want %d/%d", tt.value, used, max, tt.used, tt.max)
			}
		})
	}
}
