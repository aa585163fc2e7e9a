// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"testing"
	"time"
)

func TestDefaultBackoffDelay(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 1500 * time.Millisecond},
		{2, 2250 * time.Millisecond},
		{3, 3375 * time.Millisecond},
		{8, 25628906250 * time.Nanosecond},
		{9, 30 * time.Second},
		{50, 30 * time.Second},
		{10000, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffMonotonic(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	prev := time.Duration(0)
	saturated := false
	for n := 0; n < 30; n++ {
		d := b.Delay(n)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", n, d, prev)
		}
		if d > b.Max {
			t.Fatalf("Delay(%d) = %v exceeds max %v", n, d, b.Max)
		}
		if saturated && d != b.Max {
			t.Fatalf("Delay(%d) = %v left saturation", n, d)
		}
		if !saturated && d != b.Max && d == prev {
			t.Fatalf("Delay(%d) = %v did not grow before saturation", n, d)
		}
		saturated = d == b.Max
		prev = d
	}
	if !saturated {
		t.Error("backoff never reached its cap")
	}
}

func TestCustomBackoff(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 10 * time.Millisecond, Factor: 2, Max: 50 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		if got := b.Delay(i); got != w*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}
