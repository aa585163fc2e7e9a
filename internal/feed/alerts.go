// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package feed

import (
	"io"
	"os"
	"sync"

	"github.com/tomtom215/labnotify/internal/models"
)

// Alerter shows a transient popup for a new notification.
type Alerter interface {
	Alert(n models.Notification)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(n models.Notification)

// Alert implements Alerter.
func (f AlerterFunc) Alert(n models.Notification) { f(n) }

// MultiAlerter fans a popup out to several alerters in order.
type MultiAlerter []Alerter

// Alert implements Alerter.
func (m MultiAlerter) Alert(n models.Notification) {
	for _, a := range m {
		if a != nil {
			a.Alert(n)
		}
	}
}

// SoundPlayer plays the notification sound.
type SoundPlayer interface {
	Play()
}

// SoundPlayerFunc adapts a function to SoundPlayer.
type SoundPlayerFunc func()

// Play implements SoundPlayer.
func (f SoundPlayerFunc) Play() { f() }

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewBellPlayer creates a BellPlayer writing to out, or stdout when out is nil.
func NewBellPlayer(out io.Writer) *BellPlayer {
	if out == nil {
		out = os.Stdout
	}
	return &BellPlayer{out: out}
}

// Play implements SoundPlayer.
func (b *BellPlayer) Play() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.out.Write([]byte{'\a'})
}
