package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/clock"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/storage"
	"github.com/dsasheet/tui/internal/toast"
)

// --- fakes ---

type fakeConn struct {
	mu        sync.Mutex
	closed    bool
	emitted   []Message
	onMessage func(Message)
	onClose   func(error)
}

func (c *fakeConn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.emitted = append(c.emitted, Message{Event: event, Payload: data})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) emittedEvents() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.emitted))
	copy(out, c.emitted)
	return out
}

// push delivers a server event through the connection's read path.
func (c *fakeConn) push(event string, payload any) {
	data, _ := json.Marshal(payload)
	c.onMessage(Message{Event: event, Payload: data})
}

// drop simulates an unexpected transport failure.
func (c *fakeConn) drop() {
	c.Close()
	c.onClose(errors.New("connection reset"))
}

type fakeDialer struct {
	mu          sync.Mutex
	tokens      []string
	failAll     bool
	closeOnDial bool
	dialed      chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(token string, onMessage func(Message), onClose func(error)) (Conn, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	fail := d.failAll
	dropEarly := d.closeOnDial
	d.mu.Unlock()
	if fail {
		d.dialed <- nil
		return nil, errors.New("dial refused")
	}
	c := &fakeConn{onMessage: onMessage, onClose: onClose}
	if dropEarly {
		// The transport contract allows the read loop to report the
		// drop before Dial has returned.
		c.Close()
		onClose(errors.New("reset during handshake"))
	}
	d.dialed <- c
	return c, nil
}

func (d *fakeDialer) setCloseOnDial(v bool) {
	d.mu.Lock()
	d.closeOnDial = v
	d.mu.Unlock()
}

func (d *fakeDialer) setFailAll(v bool) {
	d.mu.Lock()
	d.failAll = v
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

type loginAPI struct {
	mu   sync.Mutex
	next api.AuthResponse
}

func (f *loginAPI) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := f.next
	return &resp, nil
}

func (f *loginAPI) Register(ctx context.Context, name, email, password string) (*api.AuthResponse, error) {
	return f.Login(ctx, email, password)
}

func (f *loginAPI) Me(ctx context.Context) (*api.User, error) {
	return nil, errors.New("unused")
}

func (f *loginAPI) Logout(ctx context.Context) error { return nil }

type countingPlayer struct {
	mu    sync.Mutex
	plays int
}

func (p *countingPlayer) Play() {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
}

func (p *countingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

// --- harness ---

type harness struct {
	t      *testing.T
	dialer *fakeDialer
	clk    *clock.Fake
	sess   *session.Store
	auth   *loginAPI
	toasts *toast.Queue
	player *countingPlayer
	mgr    *Manager
	states chan State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		dialer: newFakeDialer(),
		clk:    clock.NewFake(),
		auth:   &loginAPI{},
		player: &countingPlayer{},
		states: make(chan State, 64),
	}
	h.sess = session.New(h.auth, storage.NewMemory(), nil)
	h.toasts = toast.NewQueue(h.clk)
	h.mgr = New(h.dialer, h.clk, h.sess, h.toasts, h.player, nil)
	h.mgr.SetOnState(func(s State) { h.states <- s })
	h.mgr.Start()
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) loginAs(id string) {
	h.t.Helper()
	h.auth.mu.Lock()
	h.auth.next = api.AuthResponse{Token: "tok-" + id, User: api.User{ID: id, Name: id}}
	h.auth.mu.Unlock()
	if err := h.sess.Login(context.Background(), id+"@dsasheet.com", "pw"); err != nil {
		h.t.Fatalf("login: %v", err)
	}
}

// waitDial blocks until the next dial attempt; nil means the dial failed.
func (h *harness) waitDial() *fakeConn {
	h.t.Helper()
	select {
	case c := <-h.dialer.dialed:
		return c
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for dial")
		return nil
	}
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.states:
			if s == want {
				return
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for state %v (now %v)", want, h.mgr.State())
		}
	}
}

func (h *harness) noDial() {
	h.t.Helper()
	select {
	case c := <-h.dialer.dialed:
		h.t.Fatalf("unexpected dial: %v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

// --- tests ---

func TestConnectOnLoginAndJoinRoom(t *testing.T) {
	h := newHarness(t)

	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	msgs := conn.emittedEvents()
	if len(msgs) != 1 || msgs[0].Event != "join-room" {
		t.Fatalf("emitted = %+v, want single join-room", msgs)
	}
	var room string
	json.Unmarshal(msgs[0].Payload, &room)
	if room != "user-u1" {
		t.Errorf("room = %q, want user-u1", room)
	}
	if got := h.dialer.tokens[0]; got != "tok-u1" {
		t.Errorf("dial token = %q, want tok-u1", got)
	}
}

func TestNoConnectionWhileAnonymous(t *testing.T) {
	h := newHarness(t)
	if h.mgr.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", h.mgr.State())
	}
	h.noDial()
}

func TestLogoutTearsDown(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	h.sess.Logout(context.Background())
	h.waitState(StateDisconnected)

	if !conn.isClosed() {
		t.Error("logout must close the physical connection")
	}
	h.noDial()
}

func TestIdentityChangeSingleConnection(t *testing.T) {
	h := newHarness(t)

	h.loginAs("userA")
	connA := h.waitDial()
	h.waitState(StateConnected)

	h.loginAs("userB")
	connB := h.waitDial()
	h.waitState(StateConnected)

	if !connA.isClosed() {
		t.Error("userA's connection must be torn down before userB's opens")
	}
	if connB.isClosed() {
		t.Error("userB's connection should be live")
	}
	msgs := connB.emittedEvents()
	var room string
	json.Unmarshal(msgs[0].Payload, &room)
	if room != "user-userB" {
		t.Errorf("room = %q, want user-userB", room)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.drop()
	h.waitState(StateReconnecting)

	if h.clk.Pending() != 1 {
		t.Fatalf("pending timers = %d, want exactly 1", h.clk.Pending())
	}
	h.clk.Advance(reconnectDelay)
	next := h.waitDial()
	h.waitState(StateConnected)
	if next == nil || next.isClosed() {
		t.Fatal("expected a fresh live connection after retry")
	}
}

// A transport may report the drop before Dial has even returned. That dial's
// completion must yield to the retry already armed by the close handler;
// claiming a live connection over the dead socket would leave no timer to
// recover it.
func TestDropDuringDialStillRecovers(t *testing.T) {
	h := newHarness(t)
	h.dialer.setCloseOnDial(true)

	h.loginAs("u1")
	h.waitDial()
	h.waitState(StateReconnecting)

	// Give the dial completion time to run; it must not flip the state to
	// connected over the dead socket.
	for i := 0; i < 50; i++ {
		if h.mgr.State() == StateConnected {
			t.Fatal("dead connection reported as connected")
		}
		time.Sleep(time.Millisecond)
	}
	if h.clk.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clk.Pending())
	}

	h.dialer.setCloseOnDial(false)
	h.clk.Advance(reconnectDelay)
	next := h.waitDial()
	h.waitState(StateConnected)
	if next == nil || next.isClosed() {
		t.Fatal("expected a live connection after retry")
	}
}

func TestTokenReadFreshOnReconnect(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.drop()
	h.waitState(StateReconnecting)
	h.clk.Advance(reconnectDelay)
	h.waitDial()
	h.waitState(StateConnected)

	if len(h.dialer.tokens) != 2 || h.dialer.tokens[1] != "tok-u1" {
		t.Fatalf("tokens = %v, want fresh read per dial", h.dialer.tokens)
	}
}

func TestNoDuplicateRetryTimers(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.drop()
	h.waitState(StateReconnecting)

	// A second failure while a timer is pending must not arm another.
	conn.onClose(errors.New("late error"))
	if h.clk.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", h.clk.Pending())
	}
}

func TestBoundedRetries(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	h.dialer.setFailAll(true)
	conn.drop()
	h.waitState(StateReconnecting)

	for i := 0; i < maxReconnectAttempts; i++ {
		h.clk.Advance(reconnectDelay)
		if h.waitDial() != nil {
			t.Fatal("expected failed dial")
		}
		if i < maxReconnectAttempts-1 {
			h.waitState(StateReconnecting)
		}
	}

	h.waitState(StateDisconnected)
	if h.clk.Pending() != 0 {
		t.Errorf("pending timers = %d after exhaustion, want 0", h.clk.Pending())
	}
	h.clk.Advance(10 * reconnectDelay)
	h.noDial()

	// A fresh authentication transition restarts the cycle.
	h.dialer.setFailAll(false)
	h.sess.Logout(context.Background())
	h.loginAs("u1")
	h.waitDial()
	h.waitState(StateConnected)
}

func TestTeardownCancelsPendingTimer(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.drop()
	h.waitState(StateReconnecting)
	if h.clk.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clk.Pending())
	}

	h.sess.Logout(context.Background())
	h.waitState(StateDisconnected)
	if h.clk.Pending() != 0 {
		t.Errorf("teardown must cancel the retry timer, %d left", h.clk.Pending())
	}
	h.clk.Advance(10 * reconnectDelay)
	h.noDial()
}

func TestCloseCancelsEverything(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.drop()
	h.waitState(StateReconnecting)

	h.mgr.Close()
	if h.clk.Pending() != 0 {
		t.Errorf("close must cancel the retry timer, %d left", h.clk.Pending())
	}
	h.clk.Advance(10 * reconnectDelay)
	h.noDial()

	// Session changes after Close are ignored.
	h.loginAs("u2")
	h.noDial()
}

func TestNotificationRelay(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.push(EventNotification, api.Notification{
		ID:      "n1",
		Type:    api.NotifySuccess,
		Title:   "Streak!",
		Message: "5 days in a row",
		Sound:   true,
	})

	items := h.toasts.Items()
	if len(items) != 1 || items[0].ID != "n1" {
		t.Fatalf("toasts = %+v, want n1", items)
	}
	if h.player.count() != 1 {
		t.Errorf("sound plays = %d, want 1", h.player.count())
	}

	conn.push(EventNotification, api.Notification{ID: "n2", Title: "quiet"})
	if h.player.count() != 1 {
		t.Error("sound must only play when the payload asks for it")
	}
}

func TestProgressRelay(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	conn.push(EventProgressUpdated, api.ProgressEvent{
		UserStats: &api.Statistics{TotalSolved: 42},
	})

	snap := h.sess.Snapshot()
	if snap.User.Statistics.TotalSolved != 42 {
		t.Errorf("totalSolved = %d, want 42", snap.User.Statistics.TotalSolved)
	}
	if snap.User.Name != "u1" {
		t.Errorf("unrelated fields altered: %+v", snap.User)
	}

	// Payload without stats is a no-op.
	conn.push(EventProgressUpdated, api.ProgressEvent{})
	if h.sess.Snapshot().User.Statistics.TotalSolved != 42 {
		t.Error("empty progress event must not clobber statistics")
	}
}

func TestEmitDroppedWhenDisconnected(t *testing.T) {
	h := newHarness(t)
	// Must not panic or error while anonymous.
	h.mgr.Emit("ping", map[string]int{"n": 1})

	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	h.mgr.Emit("ping", map[string]int{"n": 2})
	msgs := conn.emittedEvents()
	if len(msgs) != 2 || msgs[1].Event != "ping" {
		t.Fatalf("emitted = %+v, want join-room then ping", msgs)
	}
}

func TestOnUnsubscribe(t *testing.T) {
	h := newHarness(t)
	h.loginAs("u1")
	conn := h.waitDial()
	h.waitState(StateConnected)

	var a, b int
	unsubA := h.mgr.On("custom", func(json.RawMessage) { a++ })
	h.mgr.On("custom", func(json.RawMessage) { b++ })

	conn.push("custom", "x")
	if a != 1 || b != 1 {
		t.Fatalf("a=%d b=%d, want both subscribers called", a, b)
	}

	unsubA()
	conn.push("custom", "y")
	if a != 1 || b != 2 {
		t.Errorf("a=%d b=%d, want only b after unsubscribe", a, b)
	}
}
