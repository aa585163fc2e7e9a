// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package feed

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/labnotify/internal/models"
)

// leadingNumber matches the numeric prefix of a value such as "13.5" or
// "13-17" or "4.2 x10^9".
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseLeadingFloat extracts the leading decimal number of s.
func parseLeadingFloat(s string) (float64, bool) {
	match := leadingNumber.FindString(strings.TrimSpace(s))
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsAbnormal reports whether a parameter's numeric value is strictly below
// its numeric normal range. Non-numeric pairs are never abnormal.
func IsAbnormal(p models.Parameter) bool {
	value, ok := parseLeadingFloat(p.Value)
	if !ok {
		return false
	}
	threshold, ok := parseLeadingFloat(p.NormalRange)
	if !ok {
		return false
	}
	return value < threshold
}

// CountAbnormal returns the number of abnormal parameters in data.
func CountAbnormal(data map[string]models.Parameter) int {
	n := 0
	for _, p := range data {
		if IsAbnormal(p) {
			n++
		}
	}
	return n
}
