// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func fastTripSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusInternalServerError, `{"detail":"database unavailable"}`)
	})
	cbc := NewCircuitBreakerClient(newTestClient(t, handler, NewTokenSource("acc", "")), fastTripSettings())

	for i := 0; i < 2; i++ {
		_, err := cbc.GetResult(context.Background(), "X1", true)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("call %d error = %v, want 500 APIError", i, err)
		}
	}
	if cbc.State() != "open" {
		t.Fatalf("State() = %q, want open", cbc.State())
	}

	_, err := cbc.ResultsByRequest(context.Background(), "R1")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail":"Lab result not found"}`)
	})
	cbc := NewCircuitBreakerClient(newTestClient(t, handler, NewTokenSource("acc", "")), fastTripSettings())

	for i := 0; i < 5; i++ {
		_, err := cbc.GetResult(context.Background(), "missing", false)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Fatalf("call %d error = %v, want 404 APIError", i, err)
		}
	}
	if cbc.State() != "closed" {
		t.Errorf("State() = %q, want closed", cbc.State())
	}
}

func TestCircuitBreakerPassesResults(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"X1","lab_request_id":"R1","result_data":{}},{"id":"X2","lab_request_id":"R1","result_data":{}}]`)
	})
	cbc := NewCircuitBreakerClient(newTestClient(t, handler, NewTokenSource("acc", "")), DefaultBreakerSettings())

	results, err := cbc.ResultsByRequest(context.Background(), "R1")
	if err != nil {
		t.Fatalf("ResultsByRequest: %v", err)
	}
	if len(results) != 2 || results[1].ResolveID() != "X2" {
		t.Errorf("results = %+v", results)
	}
	if cbc.Client() == nil {
		t.Error("Client() returned nil")
	}
}

func TestCastResult(t *testing.T) {
	if _, err := castResult[string](42, nil); err == nil {
		t.Error("castResult with wrong type succeeded")
	}
	want := errors.New("boom")
	if _, err := castResult[string](nil, want); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
	if got, err := castResult[string]("ok", nil); err != nil || got != "ok" {
		t.Errorf("castResult = %q, %v", got, err)
	}
}
