// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package results

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// ErrInvalidResult is returned by Upsert when the update has no resolvable
// id or no resultData.
var ErrInvalidResult = errors.New("invalid lab result")

// entry pairs a stored result with the sequence number of its last write.
type entry struct {
	result models.LabResult
	seq    uint64
}

// Store is the single source of truth for lab results seen by the client.
// It holds at most one entry per id and persists a snapshot after every
// mutation.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	seq      uint64
	snapshot SnapshotStore
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for default createdAt values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store backed by snapshot and rehydrates it. A missing or
// corrupt snapshot yields an empty store. A nil snapshot disables persistence.
func NewStore(snapshot SnapshotStore, opts ...Option) *Store {
	if snapshot == nil {
		snapshot = NopSnapshot{}
	}
	s := &Store{
		entries:  make(map[string]*entry),
		snapshot: snapshot,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rehydrate()
	return s
}

func (s *Store) rehydrate() {
	saved, err := s.snapshot.Load()
	if err != nil {
		metrics.SnapshotErrors.WithLabelValues("load").Inc()
		logging.Warn().Err(err).Str("component", "results").Msg("Discarding unreadable result snapshot")
		return
	}

	// Snapshots are written most recent first; replay oldest first so
	// sequence numbers keep that order.
	for i := len(saved) - 1; i >= 0; i-- {
		r := saved[i]
		if r.ID == "" || r.ResultData == nil {
			continue
		}
		s.seq++
		s.entries[r.ID] = &entry{result: r.Clone(), seq: s.seq}
	}
	metrics.ResultStoreSize.Set(float64(len(s.entries)))

	if len(s.entries) > 0 {
		logging.Info().Str("component", "results").Int("count", len(s.entries)).Msg("Restored lab results from snapshot")
	}
}

// Upsert inserts or merges a result. Fields present in u overwrite the stored
// values; absent fields, including acknowledged, are preserved. The merged
// result is returned.
func (s *Store) Upsert(u models.ResultUpdate) (models.LabResult, error) {
	id := u.ResolveID()
	if id == "" || u.ResultData == nil {
		metrics.ResultUpserts.WithLabelValues("rejected").Inc()
		logging.Warn().
			Str("component", "results").
			Str("result_id", id).
			Bool("has_result_data", u.ResultData != nil).
			Msg("Rejecting lab result without id or resultData")
		return models.LabResult{}, fmt.Errorf("%w: id=%q has_result_data=%t", ErrInvalidResult, id, u.ResultData != nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	existing, ok := s.entries[id]
	if ok {
		merge(&existing.result, u)
		existing.seq = s.seq
		metrics.ResultUpserts.WithLabelValues("merged").Inc()
	} else {
		r := models.LabResult{ID: id, CreatedAt: s.now().UTC()}
		merge(&r, u)
		existing = &entry{result: r, seq: s.seq}
		s.entries[id] = existing
		metrics.ResultUpserts.WithLabelValues("inserted").Inc()
	}

	s.persistLocked()
	return existing.result.Clone(), nil
}

// merge applies the fields present in u onto r.
func merge(r *models.LabResult, u models.ResultUpdate) {
	if u.LabResultID != "" {
		r.LabResultID = u.LabResultID
	}
	if u.LabRequestID != nil {
		r.LabRequestID = *u.LabRequestID
	}
	if u.TestType != nil {
		r.TestType = *u.TestType
	}
	if u.ResultData != nil {
		r.ResultData = make(map[string]models.Parameter, len(u.ResultData))
		for name, param := range u.ResultData {
			r.ResultData[name] = param
		}
	}
	if u.Conclusion != nil {
		r.Conclusion = *u.Conclusion
	}
	if u.CreatedAt != nil {
		r.CreatedAt = *u.CreatedAt
	}
	if u.Acknowledged != nil {
		r.Acknowledged = *u.Acknowledged
	}
}

// MarkAcknowledged flips acknowledged to true on the result whose id or
// lab_result_id alias equals id. It reports whether a result matched.
// Acknowledging an already acknowledged result changes nothing.
func (s *Store) MarkAcknowledged(id string) (models.LabResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findLocked(id)
	if e == nil {
		logging.Debug().Str("component", "results").Str("result_id", id).Msg("Acknowledgment for unknown result")
		return models.LabResult{}, false
	}
	if !e.result.Acknowledged {
		e.result.Acknowledged = true
		s.persistLocked()
	}
	return e.result.Clone(), true
}

func (s *Store) findLocked(id string) *entry {
	if id == "" {
		return nil
	}
	if e, ok := s.entries[id]; ok {
		return e
	}
	for _, e := range s.entries {
		if e.result.MatchesID(id) {
			return e
		}
	}
	return nil
}

// Get returns the result matching id by primary key or alias.
func (s *Store) Get(id string) (models.LabResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.findLocked(id)
	if e == nil {
		return models.LabResult{}, false
	}
	return e.result.Clone(), true
}

// FilterByRequest returns every result whose labRequestId equals requestID,
// newest createdAt first.
func (s *Store) FilterByRequest(requestID string) []models.LabResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LabResult, 0)
	for _, e := range s.entries {
		if e.result.LabRequestID == requestID {
			out = append(out, e.result.Clone())
		}
	}
	sortByCreatedAt(out)
	return out
}

// All returns every result, most recently inserted or updated first.
func (s *Store) All() []models.LabResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

func (s *Store) allLocked() []models.LabResult {
	ordered := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq > ordered[j].seq
	})

	out := make([]models.LabResult, len(ordered))
	for i, e := range ordered {
		out[i] = e.result.Clone()
	}
	return out
}

// Recent returns up to limit results ordered by createdAt descending.
// A limit of zero or less returns all results.
func (s *Store) Recent(limit int) []models.LabResult {
	out := s.All()
	sortByCreatedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// persistLocked writes the snapshot. Failures are logged and counted; the
// in-memory store stays authoritative.
func (s *Store) persistLocked() {
	metrics.ResultStoreSize.Set(float64(len(s.entries)))
	if err := s.snapshot.Save(s.allLocked()); err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		logging.Error().Err(err).Str("component", "results").Int("count", len(s.entries)).Msg("Failed to persist result snapshot")
	}
}

func sortByCreatedAt(results []models.LabResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}
