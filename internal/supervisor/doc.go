// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package supervisor runs LabNotify's long-lived services under suture v4.

	labnotify
	├── realtime-layer
	│   ├── RealtimeService   results stream client (+ startup REST sync)
	│   ├── HubService        local websocket hub
	│   └── PublisherService  NATS publisher (if events.enabled)
	└── api-layer
	    └── HTTPServerService local HTTP API (if server.enabled)

Crashed services are restarted with suture's backoff; context cancellation
shuts the tree down in order. Supervisor events are logged through
sutureslog, which main wires to the zerolog-backed slog handler from the
logging package.

Usage:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddRealtimeService(services.NewRealtimeService(client, services.WithStartupSync(client)))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err := tree.Serve(ctx)

The services subpackage holds the wrappers; each adapts a Start/Stop,
Run or ListenAndServe lifecycle to suture's Serve(ctx) error.
*/
package supervisor
