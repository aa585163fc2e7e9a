// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"math"
	"time"
)

// Backoff computes reconnect delays as min(Base * Factor^attempt, Max).
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// DefaultBackoff returns 1s * 1.5^n capped at 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   time.Second,
		Factor: 1.5,
		Max:    30 * time.Second,
	}
}

// Delay returns the delay before retry number attempt, counting from zero.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if d >= float64(b.Max) || math.IsInf(d, 1) || math.IsNaN(d) {
		return b.Max
	}
	return time.Duration(d)
}
