// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/labnotify/internal/models"
)

// LabRequestFilter narrows a lab request listing. Zero values are omitted.
type LabRequestFilter struct {
	Page         int
	PageSize     int
	DoctorID     string
	TechnicianID string
	Status       string
	Priority     string
	TestType     string
	From         time.Time
	To           time.Time
	SortBy       string
	SortOrder    string // asc or desc
}

// Query renders the filter as query parameters.
func (f LabRequestFilter) Query() map[string]string {
	q := make(map[string]string)
	if f.Page > 0 {
		q["page"] = strconv.Itoa(f.Page)
	}
	if f.PageSize > 0 {
		q["page_size"] = strconv.Itoa(f.PageSize)
	}
	set := func(key, value string) {
		if value != "" {
			q[key] = value
		}
	}
	set("doctor_id", f.DoctorID)
	set("technician_id", f.TechnicianID)
	set("status", f.Status)
	set("priority", f.Priority)
	set("test_type", f.TestType)
	set("sort_by", f.SortBy)
	set("sort_order", f.SortOrder)
	if !f.From.IsZero() {
		q["date_from"] = f.From.UTC().Format(time.RFC3339)
	}
	if !f.To.IsZero() {
		q["date_to"] = f.To.UTC().Format(time.RFC3339)
	}
	return q
}

// LabRequestPage is one page of lab requests.
type LabRequestPage struct {
	Items    []models.LabRequest `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// ListLabRequests returns lab requests matching filter. Both a bare array
// and a paginated envelope are accepted.
func (c *Client) ListLabRequests(ctx context.Context, filter LabRequestFilter) (LabRequestPage, error) {
	resp, err := c.send(ctx, call{
		endpoint: "lab_requests",
		method:   http.MethodGet,
		path:     "/lab-requests",
		prepare: func(r *resty.Request) {
			r.SetQueryParams(filter.Query())
		},
	})
	if err != nil {
		return LabRequestPage{}, fmt.Errorf("list lab requests: %w", err)
	}

	var page LabRequestPage
	body := bytes.TrimSpace(resp.Body())
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &page.Items); err != nil {
			return LabRequestPage{}, fmt.Errorf("decode lab requests: %w", err)
		}
		page.Total = len(page.Items)
		page.Page = filter.Page
		page.PageSize = filter.PageSize
	} else if err := decode(resp, &page); err != nil {
		return LabRequestPage{}, err
	}
	if page.Items == nil {
		page.Items = []models.LabRequest{}
	}
	return page, nil
}
