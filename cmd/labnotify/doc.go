// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Labnotify is the notification daemon for one lab services user.

It signs in to the lab backend, keeps a WebSocket stream of result events
open, stores results locally and raises notifications for new ones. Local
tools can watch the daemon through its HTTP API and WebSocket feed, or
through NATS subjects when event publishing is enabled.

Configuration is read from config.yaml (or CONFIG_PATH) and environment
variables; see internal/config. The minimum is:

	LAB_API_URL=https://lab.example.org
	LAB_TOKEN=...            # or LAB_USERNAME and LAB_PASSWORD

The process runs until SIGINT or SIGTERM, or until the backend ends the
session. A revoked session clears the cached results before exit.
*/
package main
