// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package websocket pushes live updates to local subscribers such as a
desktop tray, a browser tab or a terminal dashboard.

This is the downstream side of the client: the realtime package talks to
the lab backend, this package fans what it learns out to whoever is
watching on this machine.

Key Components:

  - Hub: registers subscribers and broadcasts messages to all of them
  - Client: one subscriber connection with read and write goroutines
  - Message: {"type": ..., "data": ...} envelope

Message Types:

	notification         popup alert for a new notification
	connection_status    connection badge (replayed to new subscribers)
	result_updated       a result was created or changed
	result_acknowledged  the server confirmed an acknowledgement
	unread_count         unread notification count
	ping / pong          subscriber keepalive

Hub implements feed.Alerter, so it can be passed to feed.WithAlerter to
deliver popup alerts.

Broadcasts never block the caller. When the 256-message queue is full the
message is dropped and counted in labnotify_websocket_errors_total; a
subscriber whose own buffer is full is disconnected.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	f := feed.New(feed.WithAlerter(hub))

	// in an HTTP handler
	conn, _ := upgrader.Upgrade(w, r, nil)
	hub.Subscribe(conn)
*/
package websocket
