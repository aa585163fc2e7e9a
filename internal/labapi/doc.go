// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package labapi is the REST client for the auth, lab-request and lab-result
services.

Every request goes through the same session policy:

  - a JWT access token whose exp claim has passed is refreshed first
  - a 401 triggers one refresh and one retry; a second 401 clears the
    credentials
  - a 403 clears the credentials immediately
  - non-2xx responses become *APIError with the message taken from the
    body's detail, message or error field

TokenSource is shared with the realtime stream, which reads the access
token on every connect. Logout callbacks registered with OnLogout run
whenever credentials are cleared.

CircuitBreakerClient adds sony/gobreaker protection to the read paths and
implements the realtime result fetcher.
*/
package labapi
