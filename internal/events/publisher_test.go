// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/labnotify/internal/models"
)

// startNATSServer runs an in-process NATS server on a random port.
func startNATSServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func subscribe(t *testing.T, url, subject string) *natsgo.Subscription {
	t.Helper()
	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return sub
}

func nextEvent(t *testing.T, sub *natsgo.Subscription) (*natsgo.Msg, Event) {
	t.Helper()
	msg, err := sub.NextMsg(3 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	var e Event
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return msg, e
}

// ========================================
// NATS Integration Tests
// ========================================

func TestPublisher_NATS(t *testing.T) {
	ns := startNATSServer(t)
	sub := subscribe(t, ns.ClientURL(), "labtest.>")

	cfg := DefaultConfig(ns.ClientURL())
	cfg.SubjectPrefix = "labtest"
	cfg.UserID = "u1"
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	ctx := context.Background()
	result := models.LabResult{ID: "X1", LabRequestID: "R1", TestType: "blood_test"}
	if err := pub.PublishResult(ctx, result); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	msg, e := nextEvent(t, sub)
	if msg.Subject != "labtest.result_ready" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if e.Type != SubjectResultReady || e.UserID != "u1" || e.Result == nil || e.Result.ID != "X1" {
		t.Errorf("event = %+v", e)
	}
	if msg.Header.Get(natsgo.MsgIdHdr) != e.EventID {
		t.Errorf("Nats-Msg-Id = %q, want %q", msg.Header.Get(natsgo.MsgIdHdr), e.EventID)
	}

	pub.Alert(models.Notification{ID: "N1", Title: "New Blood Test Result", Abnormal: true})
	msg, e = nextEvent(t, sub)
	if msg.Subject != "labtest.notification" || e.Notification == nil || !e.Notification.Abnormal {
		t.Errorf("notification event = %s %+v", msg.Subject, e)
	}

	pub.AcknowledgedResult("X1")
	msg, e = nextEvent(t, sub)
	if msg.Subject != "labtest.acknowledged" || e.ResultID != "X1" {
		t.Errorf("acknowledged event = %s %+v", msg.Subject, e)
	}
}

func TestNewPublisher_RequiresURL(t *testing.T) {
	if _, err := NewPublisher(Config{}); err == nil {
		t.Error("NewPublisher without url succeeded")
	}
}

// ========================================
// Publisher Behaviour Tests
// ========================================

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	err      error
	closed   bool
	messages []*message.Message
}

func (r *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.topics = append(r.topics, topic)
	r.messages = append(r.messages, msgs...)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestPublisher_Subject(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"labnotify", "labnotify.result_ready"},
		{"lab.events.", "lab.events.result_ready"},
	}
	for _, tt := range tests {
		p := newPublisher(&recordingPublisher{}, Config{SubjectPrefix: tt.prefix})
		if got := p.Subject(SubjectResultReady); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestPublisher_CloseDrainsBackgroundPublishes(t *testing.T) {
	rec := &recordingPublisher{}
	p := newPublisher(rec, Config{SubjectPrefix: "labnotify", PublishTimeout: time.Second})

	for i := 0; i < 10; i++ {
		p.ResultReady(models.LabResult{ID: "X1"})
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.topics) != 10 || !rec.closed {
		t.Errorf("published=%d closed=%v, want 10/true", len(rec.topics), rec.closed)
	}
	if got := rec.messages[0].Metadata.Get("event_type"); got != SubjectResultReady {
		t.Errorf("event_type metadata = %q", got)
	}
}

func TestPublisher_AfterClose(t *testing.T) {
	p := newPublisher(&recordingPublisher{}, Config{SubjectPrefix: "labnotify"})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := p.PublishAcknowledged(context.Background(), "X1"); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("error = %v, want ErrPublisherClosed", err)
	}
	p.Alert(models.Notification{ID: "N1"}) // dropped, must not panic
}

func TestPublisher_BreakerOpensAfterFailures(t *testing.T) {
	broker := errors.New("nats: connection closed")
	rec := &recordingPublisher{err: broker}
	p := newPublisher(rec, Config{SubjectPrefix: "labnotify"})

	for i := 0; i < 5; i++ {
		if err := p.PublishAcknowledged(context.Background(), "X1"); !errors.Is(err, broker) {
			t.Fatalf("attempt %d error = %v, want broker error", i, err)
		}
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	if err := p.PublishAcknowledged(context.Background(), "X1"); err == nil {
		t.Error("publish should be rejected while the breaker is open")
	}
}
