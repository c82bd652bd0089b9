// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter that admits one event per interval with no
// burst beyond the first. A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
