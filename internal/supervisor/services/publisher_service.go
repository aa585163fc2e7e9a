// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package services

import (
	"context"
	"fmt"
)

// Closer is satisfied by *events.Publisher.
type Closer interface {
	Close() error
}

// PublisherService ties the NATS publisher's lifetime to the tree: the
// publisher is drained and closed on shutdown.
type PublisherService struct {
	publisher Closer
}

// NewPublisherService wraps publisher.
func NewPublisherService(publisher Closer) *PublisherService {
	return &PublisherService{publisher: publisher}
}

// Serve implements suture.Service.
func (s *PublisherService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("event publisher close failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *PublisherService) String() string {
	return "event-publisher"
}
