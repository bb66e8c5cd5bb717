// Package ratelimit implements outbound admission control for the commerce
// API: a token bucket that paces our own calls, and a tracker for the
// X-Shopify-Shop-Api-Call-Limit header that reports how full the upstream's
// leaky bucket is.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderCallLimit carries the upstream bucket usage as "used/max".
const HeaderCallLimit = "X-Shopify-Shop-Api-Call-Limit"

// Utilization thresholds for call limit reporting.
const (
	// UtilizationCritical means the upstream is about to answer 429.
	UtilizationCritical = 0.95

	// UtilizationWarning means the upstream bucket is filling faster than it drains.
	UtilizationWarning = 0.80
)

// CallLimitState is the last observed upstream call limit.
type CallLimitState struct {
	// Used is the number of calls currently in the upstream bucket.
	Used int `json:"used"`

	// Max is the upstream bucket size.
	Max int `json:"max"`

	// LastUpdate is when the header was last observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true while utilization is below UtilizationWarning.
	IsHealthy bool `json:"is_healthy"`
}

// Utilization returns Used/Max, or 0 when Max is unknown.
func (s *CallLimitState) Utilization() float64 {
	if s.Max <= 0 {
		return 0
	}
	return float64(s.Used) / float64(s.Max)
}

// IsStale returns true if the state is older than maxAge.
func (s *CallLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsCritical returns true when the upstream bucket is nearly full.
func (s *CallLimitState) IsCritical() bool {
	return s.Utilization() >= UtilizationCritical
}

// NeedsThrottling returns true in the warning band below critical.
func (s *CallLimitState) NeedsThrottling() bool {
	return s.Utilization() >= UtilizationWarning && !s.IsCritical()
}

// UpdateHealth recomputes IsHealthy from the current usage.
func (s *CallLimitState) UpdateHealth() {
	s.IsHealthy = s.Utilization() < UtilizationWarning
}

// ParseCallLimit parses a "used/max" header value.
func ParseCallLimit(value string) (used, max int, err error) {
	usedStr, maxStr, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return 0, 0, fmt.Errorf("malformed call limit %q", value)
	}

	used, err = strconv.Atoi(strings.TrimSpace(usedStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse used calls: %w", err)
	}
	max, err = strconv.Atoi(strings.TrimSpace(maxStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse max calls: %w", err)
	}
	if max <= 0 || used < 0 {
		return 0, 0, fmt.Errorf("call limit out of range %q", value)
	}

	return used, max, nil
}
