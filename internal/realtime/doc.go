// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package realtime keeps a WebSocket connection to the lab-result service open
and turns its frames into stored results and notifications.

# Components

  - Manager: connection state machine (disconnected, connecting, connected)
    with a 20s JSON ping heartbeat and reconnect backoff of
    min(1s * 1.5^n, 30s). A close with code 1000 is final; any other close
    schedules exactly one reconnect.
  - Decode/Router: classifies every text frame as a result, a notification
    reference, an acknowledgement or unknown, then dispatches it.
  - Client: wires Manager and Router to a results.Store and a feed.Feed.

# Concurrency

Each socket has one reader goroutine, so frames are handled in transport
order. Timers come from an injected Clock. Every connect increments a
generation counter and callbacks from an older generation are ignored,
which keeps a replaced socket from scheduling its own reconnect.

# Usage

	client, err := realtime.NewClient(realtime.Config{
	    BaseURL: "https://lab.example.org",
	    UserID:  "42",
	    Tokens:  tokens,
	}, store, feed.New(), api)
	if err != nil {
	    return err
	}
	if err := client.Start(ctx); err != nil {
	    return err
	}
	defer client.Stop()
*/
package realtime
