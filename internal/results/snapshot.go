// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package results

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/models"
)

// ErrCorruptSnapshot is returned by Load when the stored snapshot is not a
// JSON array.
var ErrCorruptSnapshot = errors.New("corrupt result snapshot")

// SnapshotStore persists the full contents of a Store. It is only called from
// the store's mutation boundary.
type SnapshotStore interface {
	// Load returns the saved results, or nil with a nil error when nothing
	// has been saved yet.
	Load() ([]models.LabResult, error)

	// Save replaces the saved snapshot.
	Save(results []models.LabResult) error
}

// NopSnapshot disables persistence.
type NopSnapshot struct{}

// Load implements SnapshotStore.
func (NopSnapshot) Load() ([]models.LabResult, error) { return nil, nil }

// Save implements SnapshotStore.
func (NopSnapshot) Save([]models.LabResult) error { return nil }

// MemorySnapshot keeps the encoded snapshot in memory. It goes through the
// same codec as the BadgerDB snapshot.
type MemorySnapshot struct {
	mu   sync.Mutex
	data []byte
}

// NewMemorySnapshot creates a MemorySnapshot, optionally seeded with raw
// snapshot bytes.
func NewMemorySnapshot(seed []byte) *MemorySnapshot {
	return &MemorySnapshot{data: seed}
}

// Load implements SnapshotStore.
func (m *MemorySnapshot) Load() ([]models.LabResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil, nil
	}
	return decodeSnapshot(m.data)
}

// Save implements SnapshotStore.
func (m *MemorySnapshot) Save(results []models.LabResult) error {
	data, err := encodeSnapshot(results)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Bytes returns the encoded snapshot.
func (m *MemorySnapshot) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func encodeSnapshot(results []models.LabResult) ([]byte, error) {
	if results == nil {
		results = []models.LabResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("marshal result snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot decodes a JSON array of results. Entries that fail to decode
// or lack an id or resultData are dropped.
func decodeSnapshot(data []byte) ([]models.LabResult, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	out := make([]models.LabResult, 0, len(raw))
	discarded := 0
	for _, item := range raw {
		var u models.ResultUpdate
		if err := json.Unmarshal(item, &u); err != nil {
			discarded++
			continue
		}
		id := u.ResolveID()
		if id == "" || u.ResultData == nil {
			discarded++
			continue
		}
		r := models.LabResult{ID: id}
		merge(&r, u)
		out = append(out, r)
	}

	if discarded > 0 {
		logging.Warn().Str("component", "results").Int("discarded", discarded).Msg("Dropped unreadable entries from result snapshot")
	}
	return out, nil
}
