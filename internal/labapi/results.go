// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/labnotify/internal/models"
	"github.com/tomtom215/labnotify/internal/validation"
)

// ResultInput creates a lab result.
type ResultInput struct {
	LabRequestID string                      `json:"lab_request_id" validate:"notblank"`
	ResultData   map[string]models.Parameter `json:"result_data" validate:"required"`
	Conclusion   string                      `json:"conclusion,omitempty"`
}

// ResultPatch updates a lab result. Nil fields are left unchanged.
type ResultPatch struct {
	ResultData map[string]models.Parameter `json:"result_data,omitempty"`
	Conclusion *string                     `json:"conclusion,omitempty"`
}

// ResultImage is an image attached to a lab result.
type ResultImage struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// UnmarshalJSON accepts numeric ids and file_path as the URL.
func (img *ResultImage) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		FileName    string          `json:"file_name"`
		URL         string          `json:"url"`
		FilePath    string          `json:"file_path"`
		ContentType string          `json:"content_type"`
		Description string          `json:"description"`
		UploadedAt  json.RawMessage `json:"uploaded_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*img = ResultImage{
		ID:          models.ScalarString(raw.ID),
		FileName:    raw.FileName,
		URL:         raw.URL,
		ContentType: raw.ContentType,
		Description: raw.Description,
	}
	if img.URL == "" {
		img.URL = raw.FilePath
	}
	if t, ok := models.ParseTimestamp(models.ScalarString(raw.UploadedAt)); ok {
		img.UploadedAt = t
	}
	return nil
}

// ResultsByRequest returns every result of a lab request.
func (c *Client) ResultsByRequest(ctx context.Context, requestID string) ([]models.ResultUpdate, error) {
	resp, err := c.send(ctx, call{
		endpoint: "results_by_request",
		method:   http.MethodGet,
		path:     "/lab-results/by-request/{id}",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", requestID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("results for request %s: %w", requestID, err)
	}
	return decodeResultList(resp.Body())
}

// decodeResultList accepts a bare array or an object holding the array
// under items or results.
func decodeResultList(body []byte) ([]models.ResultUpdate, error) {
	body = bytes.TrimSpace(body)
	var out []models.ResultUpdate
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return out, nil
	}

	var envelope struct {
		Items   []models.ResultUpdate `json:"items"`
		Results []models.ResultUpdate `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	if envelope.Results != nil {
		return envelope.Results, nil
	}
	return []models.ResultUpdate{}, nil
}

// GetResult fetches one lab result.
func (c *Client) GetResult(ctx context.Context, id string, includeDetails bool) (models.ResultUpdate, error) {
	resp, err := c.send(ctx, call{
		endpoint: "get_result",
		method:   http.MethodGet,
		path:     "/lab-results/{id}",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", id).
				SetQueryParam("include_details", strconv.FormatBool(includeDetails))
		},
	})
	if err != nil {
		return models.ResultUpdate{}, fmt.Errorf("get result %s: %w", id, err)
	}

	var u models.ResultUpdate
	if err := decode(resp, &u); err != nil {
		return models.ResultUpdate{}, err
	}
	return u, nil
}

// CreateResult submits a new lab result.
func (c *Client) CreateResult(ctx context.Context, in ResultInput) (models.ResultUpdate, error) {
	if err := validation.Validate(in); err != nil {
		return models.ResultUpdate{}, fmt.Errorf("create result: %w", err)
	}
	resp, err := c.send(ctx, call{
		endpoint: "create_result",
		method:   http.MethodPost,
		path:     "/lab-results",
		prepare: func(r *resty.Request) {
			r.SetHeader("Content-Type", "application/json").SetBody(in)
		},
	})
	if err != nil {
		return models.ResultUpdate{}, fmt.Errorf("create result: %w", err)
	}

	var u models.ResultUpdate
	if err := decode(resp, &u); err != nil {
		return models.ResultUpdate{}, err
	}
	return u, nil
}

// UpdateResult patches a lab result.
func (c *Client) UpdateResult(ctx context.Context, id string, patch ResultPatch) (models.ResultUpdate, error) {
	resp, err := c.send(ctx, call{
		endpoint: "update_result",
		method:   http.MethodPatch,
		path:     "/lab-results/{id}",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", id).
				SetHeader("Content-Type", "application/json").
				SetBody(patch)
		},
	})
	if err != nil {
		return models.ResultUpdate{}, fmt.Errorf("update result %s: %w", id, err)
	}

	var u models.ResultUpdate
	if err := decode(resp, &u); err != nil {
		return models.ResultUpdate{}, err
	}
	return u, nil
}

// DeleteResult deletes a lab result.
func (c *Client) DeleteResult(ctx context.Context, id string) error {
	_, err := c.send(ctx, call{
		endpoint: "delete_result",
		method:   http.MethodDelete,
		path:     "/lab-results/{id}",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", id)
		},
	})
	if err != nil {
		return fmt.Errorf("delete result %s: %w", id, err)
	}
	return nil
}

// UploadImage attaches an image to a lab result as multipart form data.
// The content is buffered so the upload can be replayed after a token
// refresh.
func (c *Client) UploadImage(ctx context.Context, id, fileName string, content io.Reader, description string) (ResultImage, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return ResultImage{}, fmt.Errorf("read image %s: %w", fileName, err)
	}

	resp, err := c.send(ctx, call{
		endpoint: "upload_image",
		method:   http.MethodPost,
		path:     "/lab-results/{id}/upload-image",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", id).SetFileReader("file", fileName, bytes.NewReader(data))
			if description != "" {
				r.SetFormData(map[string]string{"description": description})
			}
		},
	})
	if err != nil {
		return ResultImage{}, fmt.Errorf("upload image for result %s: %w", id, err)
	}

	var img ResultImage
	if err := decode(resp, &img); err != nil {
		return ResultImage{}, err
	}
	return img, nil
}

// ListImages returns the images attached to a lab result.
func (c *Client) ListImages(ctx context.Context, id string) ([]ResultImage, error) {
	resp, err := c.send(ctx, call{
		endpoint: "list_images",
		method:   http.MethodGet,
		path:     "/lab-results/{id}/images",
		prepare: func(r *resty.Request) {
			r.SetPathParam("id", id)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list images for result %s: %w", id, err)
	}

	images := []ResultImage{}
	if err := decode(resp, &images); err != nil {
		return nil, err
	}
	return images, nil
}
