// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package results

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/labnotify/internal/models"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func hemoglobin(value string) map[string]models.Parameter {
	return map[string]models.Parameter{
		"Hemoglobin": {Value: value, Unit: "g/dL", NormalRange: "13"},
	}
}

func newTestStore(t *testing.T, snap SnapshotStore) *Store {
	t.Helper()
	return NewStore(snap, WithClock(func() time.Time { return fixedNow }))
}

func decodeUpdate(t *testing.T, payload string) models.ResultUpdate {
	t.Helper()
	var u models.ResultUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	return u
}

// failingSnapshot counts calls and fails every Save.
type failingSnapshot struct {
	mu    sync.Mutex
	saves int
}

func (f *failingSnapshot) Load() ([]models.LabResult, error) { return nil, nil }

func (f *failingSnapshot) Save([]models.LabResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return errors.New("quota exceeded")
}

// ========================================
// Upsert Tests
// ========================================

func TestUpsertIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	created := fixedNow.Add(-time.Hour)
	u := models.ResultUpdate{
		ID:           "A",
		LabRequestID: strPtr("R1"),
		TestType:     strPtr("blood_test"),
		ResultData:   hemoglobin("10"),
		CreatedAt:    &created,
	}

	first, err := store.Upsert(u)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := store.Upsert(u)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated upsert changed entry:\n first=%+v\nsecond=%+v", first, second)
	}
	got, _ := store.Get("A")
	if got.LabRequestID != "R1" || got.TestType != "blood_test" || !got.CreatedAt.Equal(created) {
		t.Errorf("stored entry = %+v", got)
	}
}

func TestUpsertMergePreservesUnspecifiedFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	if _, err := store.Upsert(models.ResultUpdate{
		ID:           "A",
		LabRequestID: strPtr("R1"),
		ResultData:   hemoglobin("10"),
		Conclusion:   strPtr("x"),
		Acknowledged: boolPtr(false),
	}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	merged, err := store.Upsert(models.ResultUpdate{
		ID:         "A",
		ResultData: hemoglobin("10"),
		Conclusion: strPtr("y"),
	})
	if err != nil {
		t.Fatalf("merge upsert: %v", err)
	}

	if merged.Conclusion != "y" {
		t.Errorf("Conclusion = %q, want y", merged.Conclusion)
	}
	if merged.LabRequestID != "R1" {
		t.Errorf("LabRequestID = %q, want R1", merged.LabRequestID)
	}
	if merged.Acknowledged {
		t.Error("Acknowledged should be preserved as false")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestUpsertPreservesAcknowledgedUnlessExplicit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("10")})
	store.MarkAcknowledged("A")

	merged, _ := store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("11")})
	if !merged.Acknowledged {
		t.Error("acknowledged flag lost on merge without explicit value")
	}
	if merged.ResultData["Hemoglobin"].Value != "11" {
		t.Errorf("resultData not replaced: %+v", merged.ResultData)
	}

	merged, _ = store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("11"), Acknowledged: boolPtr(false)})
	if merged.Acknowledged {
		t.Error("explicit acknowledged=false should overwrite")
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update models.ResultUpdate
	}{
		{"missing id", models.ResultUpdate{ResultData: hemoglobin("10")}},
		{"missing resultData", models.ResultUpdate{ID: "A"}},
		{"empty update", models.ResultUpdate{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newTestStore(t, nil)
			_, err := store.Upsert(tt.update)
			if !errors.Is(err, ErrInvalidResult) {
				t.Fatalf("err = %v, want ErrInvalidResult", err)
			}
			if store.Len() != 0 {
				t.Errorf("rejected update was stored")
			}
		})
	}
}

func TestUpsertResolvesLabResultID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	u := decodeUpdate(t, `{"id": 17, "labResultId": "X1", "labRequestId": "R1", "resultData": {"Hemoglobin": {"value": "10", "unit": "g/dL", "normalRange": "13"}}}`)

	r, err := store.Upsert(u)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r.ID != "X1" {
		t.Errorf("ID = %q, want X1", r.ID)
	}
	if !r.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want default %v", r.CreatedAt, fixedNow)
	}
	if _, ok := store.Get("X1"); !ok {
		t.Error("Get(X1) not found")
	}
}

func TestUpsertReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	r, _ := store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("10")})
	r.ResultData["Hemoglobin"] = models.Parameter{Value: "999"}

	got, _ := store.Get("A")
	if got.ResultData["Hemoglobin"].Value != "10" {
		t.Error("caller mutation leaked into the store")
	}
}

// ========================================
// Acknowledge Tests
// ========================================

func TestMarkAcknowledged(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	store.Upsert(models.ResultUpdate{ID: "X1", ResultData: hemoglobin("10")})

	r, ok := store.MarkAcknowledged("X1")
	if !ok || !r.Acknowledged {
		t.Fatalf("MarkAcknowledged = (%+v, %v)", r, ok)
	}

	r, ok = store.MarkAcknowledged("X1")
	if !ok || !r.Acknowledged {
		t.Errorf("second MarkAcknowledged = (%+v, %v), want still acknowledged", r, ok)
	}

	if _, ok := store.MarkAcknowledged("missing"); ok {
		t.Error("MarkAcknowledged on unknown id reported a match")
	}
}

func TestMarkAcknowledgedByAlias(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	store.Upsert(models.ResultUpdate{ID: "A", LabResultID: "X1", ResultData: hemoglobin("10")})

	// The entry is keyed by its lab_result_id.
	if _, ok := store.MarkAcknowledged("X1"); !ok {
		t.Fatal("alias lookup failed")
	}
	got, _ := store.Get("X1")
	if !got.Acknowledged {
		t.Error("result not acknowledged")
	}
}

// ========================================
// Read Tests
// ========================================

func TestFilterByRequest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	t1 := fixedNow.Add(-2 * time.Hour)
	t2 := fixedNow.Add(-1 * time.Hour)
	store.Upsert(models.ResultUpdate{ID: "A", LabRequestID: strPtr("R1"), ResultData: hemoglobin("10"), CreatedAt: &t1})
	store.Upsert(models.ResultUpdate{ID: "B", LabRequestID: strPtr("R2"), ResultData: hemoglobin("14")})
	store.Upsert(models.ResultUpdate{ID: "C", LabRequestID: strPtr("R1"), ResultData: hemoglobin("12"), CreatedAt: &t2})

	got := store.FilterByRequest("R1")
	if len(got) != 2 {
		t.Fatalf("FilterByRequest(R1) returned %d results, want 2", len(got))
	}
	if got[0].ID != "C" || got[1].ID != "A" {
		t.Errorf("order = [%s %s], want [C A]", got[0].ID, got[1].ID)
	}

	if got := store.FilterByRequest("R9"); len(got) != 0 {
		t.Errorf("FilterByRequest(R9) = %v, want empty", got)
	}
}

func TestAllAndRecentOrdering(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	old := fixedNow.Add(-48 * time.Hour)
	mid := fixedNow.Add(-24 * time.Hour)
	store.Upsert(models.ResultUpdate{ID: "new", ResultData: hemoglobin("10")})
	store.Upsert(models.ResultUpdate{ID: "old", ResultData: hemoglobin("10"), CreatedAt: &old})
	store.Upsert(models.ResultUpdate{ID: "mid", ResultData: hemoglobin("10"), CreatedAt: &mid})

	all := store.All()
	if ids := []string{all[0].ID, all[1].ID, all[2].ID}; !reflect.DeepEqual(ids, []string{"mid", "old", "new"}) {
		t.Errorf("All() order = %v, want most recently written first", ids)
	}

	recent := store.Recent(2)
	if len(recent) != 2 || recent[0].ID != "new" || recent[1].ID != "mid" {
		t.Errorf("Recent(2) = %v", recent)
	}
}

// ========================================
// Persistence Tests
// ========================================

func TestStorePersistsAndRehydrates(t *testing.T) {
	t.Parallel()

	snap := NewMemorySnapshot(nil)
	store := newTestStore(t, snap)
	store.Upsert(models.ResultUpdate{ID: "A", LabRequestID: strPtr("R1"), ResultData: hemoglobin("10"), Conclusion: strPtr("low")})
	store.Upsert(models.ResultUpdate{ID: "B", LabRequestID: strPtr("R1"), ResultData: hemoglobin("14")})
	store.MarkAcknowledged("A")

	restored := newTestStore(t, snap)
	if restored.Len() != 2 {
		t.Fatalf("restored Len() = %d, want 2", restored.Len())
	}
	a, ok := restored.Get("A")
	if !ok {
		t.Fatal("A missing after rehydrate")
	}
	if !a.Acknowledged || a.Conclusion != "low" || a.LabRequestID != "R1" {
		t.Errorf("restored A = %+v", a)
	}
	if a.ResultData["Hemoglobin"].Unit != "g/dL" {
		t.Errorf("restored parameter = %+v", a.ResultData["Hemoglobin"])
	}

	all := restored.All()
	if all[0].ID != "B" {
		t.Errorf("write order not preserved across rehydrate: first = %s", all[0].ID)
	}
}

func TestStoreDiscardsCorruptSnapshot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, NewMemorySnapshot([]byte(`{not json`)))
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want empty store", store.Len())
	}

	// The store remains usable and overwrites the corrupt snapshot.
	if _, err := store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("10")}); err != nil {
		t.Fatalf("upsert after corrupt load: %v", err)
	}
}

func TestStoreDropsCorruptEntries(t *testing.T) {
	t.Parallel()

	seed := []byte(`[
		{"id": "good", "labRequestId": "R1", "resultData": {"Hemoglobin": {"value": "10", "unit": "g/dL", "normalRange": "13"}}, "acknowledged": true},
		{"id": "no-data", "labRequestId": "R1"},
		{"labRequestId": "R1", "resultData": {}},
		"garbage",
		42
	]`)

	store := newTestStore(t, NewMemorySnapshot(seed))
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	good, ok := store.Get("good")
	if !ok || !good.Acknowledged {
		t.Errorf("good entry = %+v, %v", good, ok)
	}
}

func TestStoreSaveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	snap := &failingSnapshot{}
	store := newTestStore(t, snap)

	if _, err := store.Upsert(models.ResultUpdate{ID: "A", ResultData: hemoglobin("10")}); err != nil {
		t.Fatalf("upsert returned persistence error: %v", err)
	}
	if store.Len() != 1 {
		t.Error("in-memory store should keep the result")
	}
	if snap.saves != 1 {
		t.Errorf("saves = %d, want 1", snap.saves)
	}

	// Idempotent acknowledgment does not rewrite the snapshot.
	store.MarkAcknowledged("A")
	store.MarkAcknowledged("A")
	if snap.saves != 2 {
		t.Errorf("saves = %d, want 2", snap.saves)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, NewMemorySnapshot(nil))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Upsert(models.ResultUpdate{ID: "shared", ResultData: hemoglobin("10")})
		}()
		go func() {
			defer wg.Done()
			_ = store.All()
			_ = store.FilterByRequest("R1")
		}()
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}
