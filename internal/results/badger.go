// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package results

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/labnotify/internal/models"
)

const snapshotKeyPrefix = "results_snapshot:"

// BadgerSnapshot stores the result snapshot as one JSON array per user in
// BadgerDB.
type BadgerSnapshot struct {
	db  *badger.DB
	key []byte
}

// NewBadgerSnapshot creates a snapshot store for userID.
func NewBadgerSnapshot(db *badger.DB, userID string) *BadgerSnapshot {
	return &BadgerSnapshot{
		db:  db,
		key: []byte(snapshotKeyPrefix + userID),
	}
}

// OpenBadger opens a BadgerDB at path, or an in-memory instance when path is
// empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// Load implements SnapshotStore.
func (b *BadgerSnapshot) Load() ([]models.LabResult, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get result snapshot: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeSnapshot(data)
}

// Save implements SnapshotStore.
func (b *BadgerSnapshot) Save(results []models.LabResult) error {
	data, err := encodeSnapshot(results)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(b.key, data); err != nil {
			return fmt.Errorf("set result snapshot: %w", err)
		}
		return nil
	})
}

// Clear removes the saved snapshot.
func (b *BadgerSnapshot) Clear() error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key)
	})
}

var (
	_ SnapshotStore = (*BadgerSnapshot)(nil)
	_ SnapshotStore = (*MemorySnapshot)(nil)
	_ SnapshotStore = NopSnapshot{}
)
