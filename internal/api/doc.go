// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package api serves the local HTTP API on top of the realtime client.

The API is meant for tools on the same machine: a tray icon, a browser tab,
a shell script. It exposes the cached Result Store and Notification Feed,
forwards acknowledgements to the realtime stream and upgrades /api/v1/ws
to a hub subscription.

Routes:

	GET  /metrics                                 Prometheus metrics
	GET  /api/v1/health                           liveness, "degraded" while disconnected
	GET  /api/v1/ws                               websocket subscription
	GET  /api/v1/status                           connection state and counters
	POST /api/v1/reconnect                        replace the realtime connection
	GET  /api/v1/results?request_id=&limit=       cached results, newest first
	GET  /api/v1/results/{id}                     one result
	POST /api/v1/results/{id}/acknowledge         202; confirmed over the stream
	POST /api/v1/sync?request_id=                 REST sync into the store
	GET  /api/v1/notifications?unread=true        notification feed
	POST /api/v1/notifications/{id}/read          mark one read
	POST /api/v1/notifications/read-all           mark all read

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": ..., "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}

CORS (go-chi/cors) applies to all routes; rate limiting (go-chi/httprate)
applies to everything except health and the websocket.
*/
package api
