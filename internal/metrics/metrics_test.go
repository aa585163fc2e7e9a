// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func getHistogramCount(h prometheus.Histogram) uint64 {
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestSetConnectionStatus(t *testing.T) {
	tests := []struct {
		status string
		want   float64
	}{
		{"connected", StatusValueConnected},
		{"connecting", StatusValueConnecting},
		{"disconnected", StatusValueDisconnected},
		{"unknown", StatusValueDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			SetConnectionStatus(tt.status)
			if got := testutil.ToFloat64(RealtimeConnectionStatus); got != tt.want {
				t.Errorf("status gauge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordReconnectScheduled(t *testing.T) {
	beforeCount := testutil.ToFloat64(RealtimeReconnectsScheduled)
	beforeObs := getHistogramCount(RealtimeBackoffDelay)

	RecordReconnectScheduled(1500 * time.Millisecond)

	if got := testutil.ToFloat64(RealtimeReconnectsScheduled); got != beforeCount+1 {
		t.Errorf("reconnects = %v, want %v", got, beforeCount+1)
	}
	if got := getHistogramCount(RealtimeBackoffDelay); got != beforeObs+1 {
		t.Errorf("delay observations = %d, want %d", got, beforeObs+1)
	}
}

func TestRecordClose(t *testing.T) {
	before := testutil.ToFloat64(RealtimeCloses.WithLabelValues("1006"))
	RecordClose(1006)
	if got := testutil.ToFloat64(RealtimeCloses.WithLabelValues("1006")); got != before+1 {
		t.Errorf("closes{code=1006} = %v, want %v", got, before+1)
	}
}

func TestRecordLabAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		label      string
	}{
		{"success", 200, "200"},
		{"not found", 404, "404"},
		{"transport failure", 0, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := LabAPIRequests.WithLabelValues("get_result", tt.label)
			before := testutil.ToFloat64(counter)
			RecordLabAPIRequest("get_result", tt.statusCode, 20*time.Millisecond)
			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("requests{%s} = %v, want %v", tt.label, got, before+1)
			}
		})
	}
}

func TestRecordNotification(t *testing.T) {
	abnormal := NotificationsCreated.WithLabelValues("true")
	normal := NotificationsCreated.WithLabelValues("false")
	beforeAbnormal := testutil.ToFloat64(abnormal)
	beforeNormal := testutil.ToFloat64(normal)

	RecordNotification(true)
	RecordNotification(false)
	RecordNotification(false)

	if got := testutil.ToFloat64(abnormal); got != beforeAbnormal+1 {
		t.Errorf("abnormal = %v, want %v", got, beforeAbnormal+1)
	}
	if got := testutil.ToFloat64(normal); got != beforeNormal+2 {
		t.Errorf("normal = %v, want %v", got, beforeNormal+2)
	}
}

func TestRecordEventPublished(t *testing.T) {
	ok := EventsPublished.WithLabelValues("labnotify.result_ready", "success")
	failed := EventsPublished.WithLabelValues("labnotify.result_ready", "failure")
	beforeOK := testutil.ToFloat64(ok)
	beforeFailed := testutil.ToFloat64(failed)

	RecordEventPublished("labnotify.result_ready", nil)
	RecordEventPublished("labnotify.result_ready", errors.New("nats: connection closed"))

	if got := testutil.ToFloat64(ok); got != beforeOK+1 {
		t.Errorf("success = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(failed); got != beforeFailed+1 {
		t.Errorf("failure = %v, want %v", got, beforeFailed+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("GET", "/api/v1/status", "200")
	before := testutil.ToFloat64(counter)
	RecordAPIRequest("GET", "/api/v1/status", "200", time.Millisecond)
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("api requests = %v, want %v", got, before+1)
	}
}
