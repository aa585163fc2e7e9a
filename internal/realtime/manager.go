// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// ErrNotConnected is returned by Send when no socket is open.
var ErrNotConnected = errors.New("realtime: not connected")

// DefaultHeartbeatInterval is the ping period while a socket is open.
const DefaultHeartbeatInterval = 20 * time.Second

const closeWriteWait = time.Second

// pingFrame is the heartbeat payload.
var pingFrame = map[string]string{"type": "ping"}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// URL resolves the stream URL at every connect so that a refreshed
	// token is picked up.
	URL func() (string, error)

	Dialer    Dialer
	Clock     Clock
	Backoff   Backoff
	Heartbeat time.Duration

	// OnFrame receives every inbound text frame, in transport order.
	OnFrame func(data []byte)

	// OnStateChange receives connection state transitions. Stale
	// transitions are dropped so observers never go backwards.
	OnStateChange func(state models.ConnectionState)
}

// Manager owns the lifecycle of a single WebSocket connection: connect,
// heartbeat, reconnect with backoff and clean shutdown.
//
// All transitions happen under mu. Every connect bumps gen; callbacks from
// a socket or timer belonging to an older generation are ignored, which is
// how a replaced or intentionally closed socket is kept from scheduling a
// reconnect.
type Manager struct {
	cfg ManagerConfig

	mu             sync.Mutex
	conn           Conn
	gen            uint64
	status         models.ConnectionStatus
	connecting     bool
	stopped        bool
	attempts       int
	connectedAt    time.Time
	nextRetryAt    time.Time
	heartbeatTimer Timer
	reconnectTimer Timer
	lifecycle      context.Context
	cancel         context.CancelFunc

	// writeMu serializes writes on the current socket.
	writeMu sync.Mutex

	// version orders state notifications; notifyMu guards published.
	version   uint64
	notifyMu  sync.Mutex
	published uint64

	wg sync.WaitGroup
}

// NewManager creates a disconnected Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeatInterval
	}
	if cfg.OnFrame == nil {
		cfg.OnFrame = func([]byte) {}
	}
	return &Manager{
		cfg:       cfg,
		status:    models.StatusDisconnected,
		lifecycle: context.Background(),
	}
}

// Start binds the manager to ctx and connects. Cancelling ctx aborts an
// in-flight dial; Stop must still be called to close the socket.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.lifecycle, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()
	return m.Connect()
}

// Stop disconnects and waits for the reader and dial goroutines to exit.
func (m *Manager) Stop() {
	m.Disconnect()
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Connect opens a new socket, replacing any existing one. It is a no-op
// while a connection attempt is already in flight.
func (m *Manager) Connect() error {
	return m.connect(0, false)
}

// connect implements Connect. Scheduled retries pass retry=true with the
// generation that scheduled them and are dropped if anything happened since.
func (m *Manager) connect(expectGen uint64, retry bool) error {
	m.mu.Lock()
	if retry && (expectGen != m.gen || m.stopped) {
		m.mu.Unlock()
		return nil
	}
	if m.connecting {
		m.mu.Unlock()
		return nil
	}

	target, err := m.cfg.URL()
	if err != nil {
		m.mu.Unlock()
		logging.Warn().Err(err).Str("component", "realtime").Msg("Cannot resolve results stream URL")
		return fmt.Errorf("resolve stream url: %w", err)
	}

	m.gen++
	gen := m.gen
	old := m.conn
	m.conn = nil
	m.stopTimersLocked()
	m.stopped = false
	m.connecting = true
	m.nextRetryAt = time.Time{}
	state, version := m.setStatusLocked(models.StatusConnecting)
	ctx := m.lifecycle
	m.wg.Add(1)
	m.mu.Unlock()

	m.publish(state, version)
	if old != nil {
		m.closeSocket(old, websocket.CloseNormalClosure)
	}

	logging.Info().Str("component", "realtime").Int("attempt", state.ReconnectAttempts).Msg("Connecting to results stream")
	go m.dial(ctx, gen, target)
	return nil
}

func (m *Manager) dial(ctx context.Context, gen uint64, target string) {
	defer m.wg.Done()

	conn, err := m.cfg.Dialer.Dial(ctx, target)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			m.closeSocket(conn, websocket.CloseNormalClosure)
		}
		return
	}
	m.connecting = false

	if err != nil {
		m.mu.Unlock()
		logging.Warn().Err(err).Str("component", "realtime").Msg("Results stream connection failed")
		m.handleClose(gen, websocket.CloseAbnormalClosure)
		return
	}

	m.conn = conn
	m.attempts = 0
	m.connectedAt = m.cfg.Clock.Now()
	state, version := m.setStatusLocked(models.StatusConnected)
	m.scheduleHeartbeatLocked(gen)
	m.wg.Add(1)
	m.mu.Unlock()

	m.publish(state, version)
	logging.Info().Str("component", "realtime").Msg("Connected to results stream")

	go m.readLoop(gen, conn)
}

// readLoop delivers frames of one socket sequentially until it closes.
func (m *Manager) readLoop(gen uint64, conn Conn) {
	defer m.wg.Done()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCode(err)
			if code == websocket.CloseNormalClosure {
				logging.Info().Str("component", "realtime").Msg("Results stream closed normally")
			} else {
				logging.Debug().Err(err).Str("component", "realtime").Int("code", code).Msg("Results stream read ended")
			}
			m.handleClose(gen, code)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		m.cfg.OnFrame(data)
	}
}

// handleClose moves to disconnected and, unless the close was clean or the
// manager is stopped, schedules exactly one reconnect.
func (m *Manager) handleClose(gen uint64, code int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	conn := m.conn
	m.conn = nil
	m.connecting = false
	m.stopTimersLocked()
	metrics.RecordClose(code)

	var delay time.Duration
	retry := code != websocket.CloseNormalClosure && !m.stopped
	if retry {
		delay = m.cfg.Backoff.Delay(m.attempts)
		m.attempts++
		m.nextRetryAt = m.cfg.Clock.Now().Add(delay)
		m.reconnectTimer = m.cfg.Clock.AfterFunc(delay, func() {
			if err := m.connect(gen, true); err != nil {
				logging.Warn().Err(err).Str("component", "realtime").Msg("Reconnect failed")
			}
		})
	}
	state, version := m.setStatusLocked(models.StatusDisconnected)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.publish(state, version)

	if retry {
		metrics.RecordReconnectScheduled(delay)
		logging.Warn().
			Str("component", "realtime").
			Int("code", code).
			Int("attempt", state.ReconnectAttempts).
			Dur("delay", delay).
			Msg("Results stream disconnected, reconnect scheduled")
	}
}

// Disconnect cancels pending timers and closes the socket with a normal
// closure. No reconnect follows until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	m.gen++
	conn := m.conn
	m.conn = nil
	m.connecting = false
	m.attempts = 0
	m.nextRetryAt = time.Time{}
	m.stopTimersLocked()
	state, version := m.setStatusLocked(models.StatusDisconnected)
	m.mu.Unlock()

	if conn != nil {
		m.closeSocket(conn, websocket.CloseNormalClosure)
		logging.Info().Str("component", "realtime").Msg("Disconnected from results stream")
	}
	m.publish(state, version)
}

func (m *Manager) scheduleHeartbeatLocked(gen uint64) {
	m.heartbeatTimer = m.cfg.Clock.AfterFunc(m.cfg.Heartbeat, func() {
		m.heartbeat(gen)
	})
}

func (m *Manager) heartbeat(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	if err := m.write(conn, pingFrame); err != nil {
		// The reader observes the closed socket and drives the reconnect.
		logging.Warn().Err(err).Str("component", "realtime").Msg("Heartbeat failed")
		_ = conn.Close()
		return
	}
	metrics.RealtimeFramesSent.WithLabelValues("ping").Inc()

	m.mu.Lock()
	if gen == m.gen && m.conn == conn {
		m.scheduleHeartbeatLocked(gen)
	}
	m.mu.Unlock()
}

func (m *Manager) stopTimersLocked() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// Send writes v as a JSON text frame on the open socket.
func (m *Manager) Send(v interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, v)
}

func (m *Manager) write(conn Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// closeSocket sends a close frame with code and closes the socket.
func (m *Manager) closeSocket(conn Conn, code int) {
	m.writeMu.Lock()
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(closeWriteWait),
	)
	m.writeMu.Unlock()
	if err != nil {
		logging.Debug().Err(err).Str("component", "realtime").Msg("Failed to send close frame")
	}
	if err := conn.Close(); err != nil {
		logging.Debug().Err(err).Str("component", "realtime").Msg("Failed to close socket")
	}
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() models.ConnectionState {
	st := models.ConnectionState{
		Status:            m.status,
		ReconnectAttempts: m.attempts,
	}
	if m.status == models.StatusConnected && !m.connectedAt.IsZero() {
		t := m.connectedAt
		st.ConnectedAt = &t
	}
	if m.status == models.StatusDisconnected && !m.nextRetryAt.IsZero() {
		t := m.nextRetryAt
		st.NextRetryAt = &t
	}
	return st
}

// IsConnected reports whether a socket is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == models.StatusConnected
}

func (m *Manager) setStatusLocked(status models.ConnectionStatus) (models.ConnectionState, uint64) {
	m.status = status
	m.version++
	metrics.SetConnectionStatus(string(status))
	return m.stateLocked(), m.version
}

// publish delivers state to OnStateChange unless a newer state was already
// delivered.
func (m *Manager) publish(state models.ConnectionState, version uint64) {
	if m.cfg.OnStateChange == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if version <= m.published {
		return
	}
	m.published = version
	m.cfg.OnStateChange(state)
}
