// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package middleware provides the HTTP middleware of the local API.

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count and latency per chi route pattern

Both are chi-style func(http.Handler) http.Handler and are mounted by the
api package:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics supports http.Hijacker so the /api/v1/ws upgrade works
behind it.
*/
package middleware
