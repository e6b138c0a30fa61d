// Package channel maintains the live connection that carries server pushes
// (notifications, progress updates) into the client. It keeps at most one
// healthy connection per authenticated identity, recovers from transient
// drops with a bounded retry policy, and tears everything down when the
// session leaves the authenticated state.
package channel

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/clock"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/sound"
	"github.com/dsasheet/tui/internal/toast"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Server-pushed event vocabulary.
const (
	EventNotification    = "notification"
	EventProgressUpdated = "progress-updated"

	eventJoinRoom = "join-room"
)

const (
	maxReconnectAttempts = 5
	reconnectDelay       = 2 * time.Second
)

// Manager owns the channel connection lifecycle. It reacts to session
// transitions through a subscription and never outlives an explicit Close.
type Manager struct {
	dialer Dialer
	clk    clock.Clock
	sess   *session.Store
	toasts *toast.Queue
	player sound.Player
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	identity string // user the current physical connection was opened for
	seen     string // last authenticated identity observed from the session
	conn     Conn
	attempts int
	retry    clock.Timer

	// gen invalidates callbacks from superseded dials and torn-down
	// connections.
	gen int

	handlers    map[string]map[int]func(json.RawMessage)
	nextHandler int

	onState func(State)

	unsubscribe func()
	closed      bool
}

// New creates a manager and registers the built-in event relays. Call Start
// to begin reacting to session transitions.
func New(dialer Dialer, clk clock.Clock, sess *session.Store, toasts *toast.Queue, player sound.Player, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if player == nil {
		player = sound.Muted{}
	}
	m := &Manager{
		dialer:   dialer,
		clk:      clk,
		sess:     sess,
		toasts:   toasts,
		player:   player,
		log:      log,
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
	m.On(EventNotification, m.relayNotification)
	m.On(EventProgressUpdated, m.relayProgress)
	return m
}

// Start subscribes to the session store and applies its current state.
func (m *Manager) Start() {
	m.unsubscribe = m.sess.Subscribe(m.handleSession)
	m.handleSession(m.sess.Snapshot())
}

// Close is the owning scope's teardown: it cancels any pending retry timer
// synchronously, closes the physical connection, and stops reacting to
// session changes. Safe to call more than once.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Lock()
	m.closed = true
	m.seen = ""
	before := m.state
	m.teardownLocked()
	cb := m.onState
	m.mu.Unlock()
	if cb != nil && before != StateDisconnected {
		cb(StateDisconnected)
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetOnState registers a callback fired after every state change, outside
// the manager's lock. Used by the status bar.
func (m *Manager) SetOnState(fn func(State)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

// On registers cb for the named event and returns an unsubscribe func that
// removes only this registration. Every subscriber receives every matching
// message.
func (m *Manager) On(event string, cb func(json.RawMessage)) func() {
	m.mu.Lock()
	id := m.nextHandler
	m.nextHandler++
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]func(json.RawMessage))
	}
	m.handlers[event][id] = cb
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		if set := m.handlers[event]; set != nil {
			delete(set, id)
		}
		m.mu.Unlock()
	}
}

// Emit sends an event to the server. When the channel is not connected the
// message is dropped and logged; callers must not assume delivery.
func (m *Manager) Emit(event string, payload any) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected || conn == nil {
		m.log.Debug("channel: emit dropped, not connected", "event", event)
		return
	}
	if err := conn.Emit(event, payload); err != nil {
		m.log.Debug("channel: emit failed", "event", event, "err", err)
	}
}

// handleSession reacts to the latest session snapshot. A fresh
// authentication transition (new identity, or re-authentication after
// leaving the authenticated state) opens a connection; leaving the
// authenticated state tears it down.
func (m *Manager) handleSession(snap session.Snapshot) {
	desired := ""
	if snap.Authenticated() {
		desired = snap.User.ID
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	before := m.state

	switch {
	case desired == "":
		m.seen = ""
		m.teardownLocked()
	case desired == m.seen:
		// Same identity, no transition (e.g. a statistics merge). A
		// connection that exhausted its retries stays down until a
		// fresh authentication transition.
	default:
		// New identity: the old connection and its timer go first.
		m.seen = desired
		m.teardownLocked()
		m.identity = desired
		m.connectLocked()
	}

	after := m.state
	cb := m.onState
	m.mu.Unlock()
	if cb != nil && after != before {
		cb(after)
	}
}

// connectLocked begins a dial for the current identity. The token is read
// fresh from the session at this moment, never cached across attempts.
func (m *Manager) connectLocked() {
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	go m.dial(gen)
}

func (m *Manager) dial(gen int) {
	token := m.sess.Token()
	if token == "" {
		// Session left Authenticated between scheduling and dialing;
		// its notification will have torn us down already.
		m.mu.Lock()
		if gen == m.gen {
			m.teardownLocked()
		}
		m.mu.Unlock()
		return
	}

	conn, err := m.dialer.Dial(token,
		func(msg Message) { m.handleMessage(gen, msg) },
		func(cause error) { m.handleClose(gen, cause) },
	)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	before := m.state
	if err != nil {
		m.log.Debug("channel: connect failed", "identity", m.identity, "err", err)
		m.scheduleRetryLocked()
		m.finishTransition(before)
		return
	}
	if m.state != StateConnecting {
		// The read loop reported a drop before this continuation ran, so
		// a retry is already armed. The connection is dead; claiming
		// Connected here would strand it with no timer to recover.
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0

	// Join the per-user room before anyone can observe Connected, so
	// server fan-out reaches only this user's sessions. Events arriving
	// before the join are buffered server-side.
	room := "user-" + m.identity
	if err := conn.Emit(eventJoinRoom, room); err != nil {
		m.log.Debug("channel: join-room failed", "room", room, "err", err)
	}
	m.finishTransition(before)
}

// handleClose reacts to an unexpected drop of the current connection.
func (m *Manager) handleClose(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.log.Debug("channel: connection dropped", "identity", m.identity, "err", cause)
	m.conn = nil
	before := m.state
	m.scheduleRetryLocked()
	m.finishTransition(before)
}

// scheduleRetryLocked arms the single retry timer. Scheduling while one is
// already pending is a no-op; exhausting the attempt budget gives up until
// the next authentication transition.
func (m *Manager) scheduleRetryLocked() {
	if m.retry != nil {
		return
	}
	if m.attempts >= maxReconnectAttempts {
		m.log.Warn("channel: reconnect attempts exhausted", "identity", m.identity)
		m.teardownLocked()
		return
	}
	m.attempts++
	m.state = StateReconnecting
	gen := m.gen
	m.retry = m.clk.AfterFunc(reconnectDelay, func() { m.retryFired(gen) })
}

func (m *Manager) retryFired(gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	if m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	before := m.state
	m.connectLocked()
	m.finishTransition(before)
}

// teardownLocked closes the connection, cancels the pending retry timer,
// and clears the identity. Callbacks from the old connection are fenced off
// by the generation bump.
func (m *Manager) teardownLocked() {
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.identity = ""
	m.attempts = 0
	m.state = StateDisconnected
}

// finishTransition releases the lock and reports a state change, if any.
// Callers must hold m.mu.
func (m *Manager) finishTransition(before State) {
	after := m.state
	cb := m.onState
	m.mu.Unlock()
	if cb != nil && after != before {
		cb(after)
	}
}

// handleMessage dispatches an inbound message to every subscriber of its
// event. Callbacks run outside the manager's lock.
func (m *Manager) handleMessage(gen int, msg Message) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	set := m.handlers[msg.Event]
	cbs := make([]func(json.RawMessage), 0, len(set))
	for _, cb := range set {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	if len(cbs) == 0 {
		m.log.Debug("channel: unhandled event", "event", msg.Event)
		return
	}
	for _, cb := range cbs {
		cb(msg.Payload)
	}
}

// relayNotification feeds "notification" events into the toast queue and
// plays the audible cue when asked. Sound failures never reach the user.
func (m *Manager) relayNotification(payload json.RawMessage) {
	var n api.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		m.log.Debug("channel: bad notification payload", "err", err)
		return
	}
	m.toasts.Push(n)
	if n.Sound {
		m.player.Play()
	}
}

// relayProgress applies pushed statistics to the session's user.
func (m *Manager) relayProgress(payload json.RawMessage) {
	var ev api.ProgressEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		m.log.Debug("channel: bad progress payload", "err", err)
		return
	}
	if ev.UserStats == nil {
		return
	}
	m.sess.UpdateUser(session.UserUpdate{Statistics: ev.UserStats})
}
