// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package results implements the Result Store: an in-memory, deduplicating
collection of lab results merged from WebSocket pushes and REST fetches.

Each result is keyed by its resolved id (lab_result_id when present, else id).
A later write for the same id merges onto the existing entry: fields present
in the update win, absent fields are kept, and the acknowledged flag only
changes when the update sets it explicitly. Writes are last-write-wins per id
with no timestamp comparison.

# Persistence

Every mutation writes the full store through a SnapshotStore. The production
implementation is BadgerSnapshot, which keeps one JSON array per user. The
snapshot is a cache: an unreadable snapshot is discarded and the store starts
empty, and individual entries that fail to decode are dropped on load.

	db, err := results.OpenBadger(cfg.Storage.Path)
	store := results.NewStore(results.NewBadgerSnapshot(db, userID))

	merged, err := store.Upsert(update)
	if errors.Is(err, results.ErrInvalidResult) {
		// missing id or resultData: treat as a no-op
	}
*/
package results
