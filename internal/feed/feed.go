// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package feed

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// timeDisplayLayout formats Notification.Time.
const timeDisplayLayout = "15:04"

// Feed is the newest-first list of notifications for one client.
type Feed struct {
	mu    sync.RWMutex
	items []models.Notification

	alerter Alerter
	sound   SoundPlayer
	now     func() time.Time
	hooks   sync.WaitGroup
}

// Option configures a Feed.
type Option func(*Feed)

// WithAlerter sets the popup hook.
func WithAlerter(a Alerter) Option {
	return func(f *Feed) { f.alerter = a }
}

// WithSoundPlayer sets the sound hook.
func WithSoundPlayer(p SoundPlayer) Option {
	return func(f *Feed) { f.sound = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// New creates an empty feed.
func New(opts ...Option) *Feed {
	f := &Feed{now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromResult derives a notification from a result, prepends it to the feed
// and fires the popup and sound hooks.
func (f *Feed) FromResult(r models.LabResult) models.Notification {
	total := len(r.ResultData)
	abnormal := CountAbnormal(r.ResultData)

	message := fmt.Sprintf("%d parameter(s) within normal range", total)
	if abnormal > 0 {
		message = fmt.Sprintf("Abnormal values detected in %d parameter(s)", abnormal)
	}

	n := f.newNotification(r.ID, resultTitle(r.TestType), message)
	n.Abnormal = abnormal > 0
	n.LabResultID = r.ID
	n.LabRequestID = r.LabRequestID

	f.add(n)
	return n
}

// FromReference derives a notification from a reference frame whose result
// could not be fetched. The reference message is shown as is.
func (f *Feed) FromReference(ref models.NotificationRef) models.Notification {
	message := ref.Message
	if message == "" {
		message = "A new lab result is available"
	}

	n := f.newNotification(ref.EntityID, "New Lab Result", message)
	n.LabResultID = ref.EntityID
	if !ref.CreatedAt.IsZero() {
		n.Timestamp = ref.CreatedAt
		n.Time = ref.CreatedAt.Local().Format(timeDisplayLayout)
	}

	f.add(n)
	return n
}

func (f *Feed) newNotification(id, title, message string) models.Notification {
	if id == "" {
		id = uuid.NewString()
	}
	now := f.now()
	return models.Notification{
		ID:        id,
		Title:     title,
		Message:   message,
		Time:      now.Local().Format(timeDisplayLayout),
		Timestamp: now,
	}
}

func (f *Feed) add(n models.Notification) {
	f.mu.Lock()
	f.items = append([]models.Notification{n}, f.items...)
	unread := f.unreadLocked()
	f.mu.Unlock()

	metrics.RecordNotification(n.Abnormal)
	metrics.NotificationsUnread.Set(float64(unread))
	logging.Info().
		Str("component", "feed").
		Str("notification_id", n.ID).
		Str("result_id", n.LabResultID).
		Bool("abnormal", n.Abnormal).
		Msg(n.Title)

	f.fireHooks(n)
}

// fireHooks runs the popup and sound hooks in their own goroutines.
func (f *Feed) fireHooks(n models.Notification) {
	if f.alerter != nil {
		f.goHook("alert", func() { f.alerter.Alert(n) })
	}
	if f.sound != nil {
		f.goHook("sound", f.sound.Play)
	}
}

func (f *Feed) goHook(name string, fn func()) {
	f.hooks.Add(1)
	go func() {
		defer f.hooks.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Error().Str("component", "feed").Str("hook", name).Interface("panic", r).Msg("Notification hook panicked")
			}
		}()
		fn()
	}()
}

// WaitHooks blocks until every hook started so far has returned.
func (f *Feed) WaitHooks() {
	f.hooks.Wait()
}

// MarkRead marks the notification with id as read. It reports whether a
// notification matched.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	found := false
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			found = true
		}
	}
	unread := f.unreadLocked()
	f.mu.Unlock()

	metrics.NotificationsUnread.Set(float64(unread))
	return found
}

// MarkAllRead marks every notification as read and returns how many changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	changed := 0
	for i := range f.items {
		if !f.items[i].Read {
			f.items[i].Read = true
			changed++
		}
	}
	f.mu.Unlock()

	metrics.NotificationsUnread.Set(0)
	return changed
}

// UnreadCount returns the number of unread notifications.
func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unreadLocked()
}

func (f *Feed) unreadLocked() int {
	n := 0
	for i := range f.items {
		if !f.items[i].Read {
			n++
		}
	}
	return n
}

// All returns the notifications, newest first.
func (f *Feed) All() []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Len returns the number of notifications.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// resultTitle builds "New <Test Type> Result".
func resultTitle(testType string) string {
	name := humanize(testType)
	if name == "" {
		return "New Lab Result"
	}
	return "New " + name + " Result"
}

// humanize turns "blood_test" into "Blood Test".
func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
