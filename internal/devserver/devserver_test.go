package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/channel"
	"github.com/dsasheet/tui/internal/clock"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/sound"
	"github.com/dsasheet/tui/internal/storage"
	"github.com/dsasheet/tui/internal/toast"
)

// stack wires a full client against an httptest devserver, using the real
// websocket transport.
type stack struct {
	srv    *httptest.Server
	client *api.Client
	store  *storage.Memory
	sess   *session.Store
	toasts *toast.Queue
	mgr    *channel.Manager
}

func newStack(t *testing.T) *stack {
	t.Helper()
	srv := httptest.NewServer(New(nil).Handler())
	t.Cleanup(srv.Close)

	store := storage.NewMemory()
	client := api.NewClient(srv.URL, func() string {
		v, _, _ := store.Get(storage.KeyToken)
		return v
	})
	sess := session.New(client, store, nil)
	client.SetUnauthorizedHook(sess.ForceAnonymous)

	toasts := toast.NewQueue(clock.System())
	dialer := &channel.WebsocketDialer{
		URL: strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws",
	}
	mgr := channel.New(dialer, clock.System(), sess, toasts, sound.Muted{}, nil)
	mgr.Start()
	t.Cleanup(mgr.Close)

	return &stack{srv: srv, client: client, store: store, sess: sess, toasts: toasts, mgr: mgr}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEndToEndLoginChannelAndRevocation(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	// Startup with nothing persisted resolves anonymous offline.
	if err := st.sess.LoadSession(ctx); err != nil {
		t.Fatal(err)
	}
	if st.sess.Snapshot().Status != session.StatusAnonymous {
		t.Fatal("expected anonymous before login")
	}

	email, password := DemoCredentials()
	if err := st.sess.Login(ctx, email, password); err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok, ok, _ := st.store.Get(storage.KeyToken); !ok || tok == "" {
		t.Fatal("login must persist the token")
	}

	waitFor(t, "channel connect", func() bool {
		return st.mgr.State() == channel.StateConnected
	})

	// Mark a problem solved over REST; the server pushes the refreshed
	// statistics and a notification back through the channel.
	topics, err := st.client.Topics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	full, err := st.client.Topic(ctx, topics[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	problem := full.Problems[0]

	before := st.sess.Snapshot().User.Statistics.TotalSolved
	if _, err := st.client.UpdateProgress(ctx, problem.ID, api.ProgressUpdate{Solved: true, TimeSpent: 300}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "pushed statistics", func() bool {
		return st.sess.Snapshot().User.Statistics.TotalSolved == before+1
	})
	waitFor(t, "pushed notification", func() bool {
		return st.toasts.Len() > 0
	})

	// Revoke the token server-side; the next REST call's 401 forces the
	// session anonymous and drags the channel down with it.
	tok, _, _ := st.store.Get(storage.KeyToken)
	if err := st.client.Logout(ctx); err != nil {
		t.Fatalf("logout call: %v", err)
	}
	st.store.Set(storage.KeyToken, tok) // simulate a stale persisted token
	if _, err := st.client.Topics(ctx); err == nil {
		t.Fatal("expected 401 after revocation")
	}

	if st.sess.Snapshot().Status != session.StatusAnonymous {
		t.Error("401 must force anonymous")
	}
	if _, ok, _ := st.store.Get(storage.KeyToken); ok {
		t.Error("401 must remove the persisted token")
	}
	waitFor(t, "channel teardown", func() bool {
		return st.mgr.State() == channel.StateDisconnected
	})
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	st := newStack(t)
	err := st.sess.Login(context.Background(), "demo@dsasheet.com", "wrong")
	if err == nil {
		t.Fatal("expected login failure")
	}
	snap := st.sess.Snapshot()
	if snap.LastError != "Invalid credentials" {
		t.Errorf("lastError = %q", snap.LastError)
	}
}

func TestRegisterAndFetchTopics(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	if err := st.sess.Register(ctx, "New User", "new@dsasheet.com", "Secret1!"); err != nil {
		t.Fatalf("register: %v", err)
	}
	snap := st.sess.Snapshot()
	if !snap.Authenticated() || snap.User.Email != "new@dsasheet.com" {
		t.Fatalf("snapshot = %+v", snap)
	}

	topics, err := st.client.Topics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) == 0 {
		t.Fatal("expected seeded topics")
	}
	for _, topic := range topics {
		if len(topic.Problems) != 0 {
			t.Errorf("topic list must omit problem bodies, got %d", len(topic.Problems))
		}
	}

	full, err := st.client.Topic(ctx, topics[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(full.Problems) == 0 {
		t.Fatal("expected problems in topic detail")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	email, _ := DemoCredentials()

	err := st.sess.Register(ctx, "Imposter", email, "Secret1!")
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if st.sess.Snapshot().LastError == "" {
		t.Error("expected a user-facing reason")
	}
}

func TestJoinRoomScopedToOwnUser(t *testing.T) {
	srv := httptest.NewServer(New(nil).Handler())
	defer srv.Close()

	// Connections never join another user's room, so pushes to a foreign
	// identity must not arrive. Covered implicitly by the devserver's
	// join-room validation; here we just make sure an unauthenticated
	// upgrade is refused outright.
	dialer := &channel.WebsocketDialer{
		URL: strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws",
	}
	if _, err := dialer.Dial("not-a-token", func(channel.Message) {}, func(error) {}); err == nil {
		t.Fatal("expected handshake rejection with a bad token")
	}
}
