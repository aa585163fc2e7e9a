// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Lab request statuses
const (
	LabRequestPending    = "pending"
	LabRequestInProgress = "in_progress"
	LabRequestCompleted  = "completed"
	LabRequestCancelled  = "cancelled"
	LabRequestRejected   = "rejected"
)

// Lab request urgencies
const (
	UrgencyStat    = "stat"
	UrgencyUrgent  = "urgent"
	UrgencyRoutine = "routine"
)

// LabRequest is an ordered diagnostic test. It is owned by the lab-request
// service and never mutated by this client.
type LabRequest struct {
	ID           string    `json:"id"`
	TestType     string    `json:"test_type"`
	PatientName  string    `json:"patient_name"`
	Status       string    `json:"status"`
	Urgency      string    `json:"urgency"`
	DoctorID     string    `json:"doctor_id,omitempty"`
	TechnicianID string    `json:"technician_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Parameter is a single named measurement inside a lab result.
type Parameter struct {
	Value       string    `json:"value"`
	Unit        string    `json:"unit"`
	NormalRange string    `json:"normalRange"`
	RecordedAt  time.Time `json:"recordedAt"`
	RecordedBy  string    `json:"recordedBy,omitempty"`
}

// UnmarshalJSON accepts camelCase and snake_case keys, and numeric values
// for value and normal range.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value            json.RawMessage `json:"value"`
		Unit             json.RawMessage `json:"unit"`
		NormalRange      json.RawMessage `json:"normalRange"`
		NormalRangeSnake json.RawMessage `json:"normal_range"`
		RecordedAt       json.RawMessage `json:"recordedAt"`
		RecordedAtSnake  json.RawMessage `json:"recorded_at"`
		RecordedBy       json.RawMessage `json:"recordedBy"`
		RecordedBySnake  json.RawMessage `json:"recorded_by"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Value = ScalarString(raw.Value)
	p.Unit = ScalarString(raw.Unit)
	p.NormalRange = ScalarString(FirstPresent(raw.NormalRange, raw.NormalRangeSnake))
	p.RecordedBy = ScalarString(FirstPresent(raw.RecordedBy, raw.RecordedBySnake))
	p.RecordedAt = time.Time{}
	if t, ok := ParseTimestamp(ScalarString(FirstPresent(raw.RecordedAt, raw.RecordedAtSnake))); ok {
		p.RecordedAt = t
	}
	return nil
}

// LabResult is the structured outcome of a completed lab request as held by
// the Result Store. ID is unique within the store.
type LabResult struct {
	// ID is the store key: the backend lab_result_id when present, else id.
	ID string `json:"id"`

	// LabResultID is the secondary alias the backend may use to refer to
	// this result (for example in acknowledge_success frames).
	LabResultID string `json:"lab_result_id,omitempty"`

	LabRequestID string               `json:"labRequestId"`
	TestType     string               `json:"testType,omitempty"`
	ResultData   map[string]Parameter `json:"resultData"`
	Conclusion   string               `json:"conclusion,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	Acknowledged bool                 `json:"acknowledged"`
}

// MatchesID reports whether id refers to this result by its primary key or
// its lab_result_id alias.
func (r *LabResult) MatchesID(id string) bool {
	if id == "" {
		return false
	}
	return r.ID == id || r.LabResultID == id
}

// Clone returns a deep copy so callers cannot mutate store-owned maps.
func (r *LabResult) Clone() LabResult {
	out := *r
	if r.ResultData != nil {
		out.ResultData = make(map[string]Parameter, len(r.ResultData))
		for name, param := range r.ResultData {
			out.ResultData[name] = param
		}
	}
	return out
}

// ResultUpdate is a lab result as received from the outside world. Only the
// fields that were present in the payload are set: nil pointers and a nil
// ResultData mean "not sent" and never overwrite stored values.
type ResultUpdate struct {
	ID           string
	LabResultID  string
	LabRequestID *string
	TestType     *string
	ResultData   map[string]Parameter
	Conclusion   *string
	CreatedAt    *time.Time
	Acknowledged *bool
}

// ResolveID returns the store key for the update: lab_result_id when
// present, otherwise id.
func (u *ResultUpdate) ResolveID() string {
	return firstNonEmpty(u.LabResultID, u.ID)
}

// UpdateFromResult converts a complete LabResult into an update that sets
// every field, including an explicit acknowledged flag.
func UpdateFromResult(r LabResult) ResultUpdate {
	createdAt := r.CreatedAt
	acknowledged := r.Acknowledged
	requestID := r.LabRequestID
	testType := r.TestType
	conclusion := r.Conclusion
	data := r.Clone().ResultData
	if data == nil {
		data = map[string]Parameter{}
	}
	return ResultUpdate{
		ID:           r.ID,
		LabResultID:  r.LabResultID,
		LabRequestID: &requestID,
		TestType:     &testType,
		ResultData:   data,
		Conclusion:   &conclusion,
		CreatedAt:    &createdAt,
		Acknowledged: &acknowledged,
	}
}

// UnmarshalJSON decodes a result payload from any of the backend shapes.
func (u *ResultUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                json.RawMessage      `json:"id"`
		LabResultID       json.RawMessage      `json:"labResultId"`
		LabResultIDSnake  json.RawMessage      `json:"lab_result_id"`
		LabRequestID      json.RawMessage      `json:"labRequestId"`
		LabRequestIDSnake json.RawMessage      `json:"lab_request_id"`
		TestType          *string              `json:"testType"`
		TestTypeSnake     *string              `json:"test_type"`
		ResultData        map[string]Parameter `json:"resultData"`
		ResultDataSnake   map[string]Parameter `json:"result_data"`
		Conclusion        *string              `json:"conclusion"`
		CreatedAt         json.RawMessage      `json:"createdAt"`
		CreatedAtSnake    json.RawMessage      `json:"created_at"`
		Acknowledged      *bool                `json:"acknowledged"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = ResultUpdate{
		ID:          ScalarString(raw.ID),
		LabResultID: ScalarString(FirstPresent(raw.LabResultID, raw.LabResultIDSnake)),
		Conclusion:  raw.Conclusion,
	}

	if reqRaw := FirstPresent(raw.LabRequestID, raw.LabRequestIDSnake); reqRaw != nil {
		requestID := ScalarString(reqRaw)
		u.LabRequestID = &requestID
	}

	if raw.TestType != nil {
		u.TestType = raw.TestType
	} else {
		u.TestType = raw.TestTypeSnake
	}

	if raw.ResultData != nil {
		u.ResultData = raw.ResultData
	} else {
		u.ResultData = raw.ResultDataSnake
	}

	if t, ok := ParseTimestamp(ScalarString(FirstPresent(raw.CreatedAt, raw.CreatedAtSnake))); ok {
		u.CreatedAt = &t
	}

	u.Acknowledged = raw.Acknowledged
	return nil
}
