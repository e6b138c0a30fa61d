// Package session is the single source of truth for "who is logged in".
// It owns the bearer token, persists it across restarts, and exposes the
// state transitions the rest of the client reacts to.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/storage"
)

// Status is the session lifecycle state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// AuthAPI is the slice of the REST client the store depends on.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*api.AuthResponse, error)
	Me(ctx context.Context) (*api.User, error)
	Logout(ctx context.Context) error
}

// Snapshot is an immutable view of the session handed to subscribers.
type Snapshot struct {
	Status    Status
	User      *api.User // copy; nil unless authenticated
	LastError string
}

// Authenticated reports whether the snapshot carries a signed-in identity.
func (s Snapshot) Authenticated() bool { return s.Status == StatusAuthenticated }

// UserUpdate merges fields into the current user. Nil fields are left alone.
type UserUpdate struct {
	Name        *string
	Avatar      *string
	Preferences *api.Preferences
	Statistics  *api.Statistics
}

// Store holds the current session and serializes all transitions.
//
// Invariant: status == StatusAuthenticated exactly when token and user are
// both set; they are always assigned and cleared together.
type Store struct {
	api     AuthAPI
	storage storage.Store
	log     *slog.Logger

	mu        sync.Mutex
	status    Status
	token     string
	user      *api.User
	lastError string

	// attempt guards against a superseded login/register/load completion
	// overwriting newer state.
	attempt int

	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a store in the Uninitialized state.
func New(authAPI AuthAPI, store storage.Store, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		api:     authAPI,
		storage: store,
		log:     log,
		status:  StatusUninitialized,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Token returns the current bearer token, or "" when not authenticated.
// The channel manager reads this fresh at every connect attempt.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers fn for every state change and returns an unsubscribe
// func. fn is called outside the store's lock; it may call back into the
// store.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Login authenticates with the backend. On success the token is persisted
// and the store becomes Authenticated; on failure it becomes Anonymous with
// LastError set to the server-reported reason.
func (s *Store) Login(ctx context.Context, email, password string) error {
	attempt := s.beginAttempt()
	resp, err := s.api.Login(ctx, email, password)
	return s.completeAuth(attempt, resp, err)
}

// Register creates an account and signs in, with the same contract as Login.
// Input validation (password confirmation and the like) is the caller's
// concern; this transition assumes the form was already accepted.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	attempt := s.beginAttempt()
	resp, err := s.api.Register(ctx, name, email, password)
	return s.completeAuth(attempt, resp, err)
}

// LoadSession restores a persisted session at startup. With no persisted
// token it resolves Anonymous immediately, without a network call. An
// invalid or expired token is cleared silently; startup never surfaces a
// user-visible error.
func (s *Store) LoadSession(ctx context.Context) error {
	token, ok, err := s.storage.Get(storage.KeyToken)
	if err != nil {
		s.log.Warn("session: read persisted token", "err", err)
	}
	if !ok || token == "" {
		s.mu.Lock()
		s.attempt++
		s.clearLocked("")
		s.notify(s.snapshotLocked())
		return nil
	}

	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.token = ""
	s.user = nil
	s.lastError = ""
	s.status = StatusLoading
	s.notify(s.snapshotLocked())

	user, err := s.api.Me(ctx)

	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		// Stale token. Drop it and carry on anonymously.
		s.clearLocked("")
		s.notify(s.snapshotLocked())
		s.removePersisted()
		s.log.Debug("session: persisted token rejected", "err", err)
		return nil
	}
	s.token = token
	s.user = user
	s.status = StatusAuthenticated
	s.lastError = ""
	s.notify(s.snapshotLocked())
	s.cacheUser(user)
	return nil
}

// Logout signs out. The backend call is best-effort: local state is cleared
// and the persisted token removed no matter what, so Logout never fails from
// the caller's perspective.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil && !errors.Is(err, api.ErrUnauthorized) {
		s.log.Debug("session: logout request failed", "err", err)
	}
	s.mu.Lock()
	s.attempt++
	s.clearLocked("")
	s.notify(s.snapshotLocked())
	s.removePersisted()
}

// ForceAnonymous handles the global 401 signal: any backend response with a
// revoked token forces this transition from anywhere in the app. It is
// silent; lastError stays empty.
func (s *Store) ForceAnonymous() {
	s.mu.Lock()
	if s.status == StatusAnonymous {
		s.mu.Unlock()
		return
	}
	s.attempt++
	s.clearLocked("")
	s.notify(s.snapshotLocked())
	s.removePersisted()
}

// UpdateUser merges the update into the current user in place. No-op when
// signed out. Used by the live channel to apply pushed statistics.
func (s *Store) UpdateUser(upd UserUpdate) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	if upd.Name != nil {
		s.user.Name = *upd.Name
	}
	if upd.Avatar != nil {
		s.user.Avatar = *upd.Avatar
	}
	if upd.Preferences != nil {
		s.user.Preferences = *upd.Preferences
	}
	if upd.Statistics != nil {
		s.user.Statistics = *upd.Statistics
	}
	user := *s.user
	s.notify(s.snapshotLocked())
	s.cacheUser(&user)
}

// CachedUser returns the locally persisted profile, if any. Lets `whoami`
// answer without a network round trip.
func (s *Store) CachedUser() *api.User {
	raw, ok, err := s.storage.Get(storage.KeyCachedUser)
	if err != nil || !ok {
		return nil
	}
	var u api.User
	if json.Unmarshal([]byte(raw), &u) != nil {
		return nil
	}
	return &u
}

// beginAttempt starts a login/register transition: bumps the attempt
// counter, clears any stale error, and enters Loading. Token and user are
// cleared with the status so no observer ever sees a signed-in identity
// outside Authenticated, even when a new attempt starts over an existing
// session.
func (s *Store) beginAttempt() int {
	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.token = ""
	s.user = nil
	s.lastError = ""
	s.status = StatusLoading
	s.notify(s.snapshotLocked())
	return attempt
}

// completeAuth applies the outcome of a login/register attempt, unless a
// newer transition has superseded it.
func (s *Store) completeAuth(attempt int, resp *api.AuthResponse, err error) error {
	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.clearLocked(displayReason(err))
		s.notify(s.snapshotLocked())
		return err
	}
	user := resp.User
	s.token = resp.Token
	s.user = &user
	s.status = StatusAuthenticated
	s.lastError = ""
	s.notify(s.snapshotLocked())

	if perr := s.storage.Set(storage.KeyToken, resp.Token); perr != nil {
		s.log.Warn("session: persist token", "err", perr)
	}
	s.cacheUser(&user)
	return nil
}

// clearLocked resets to Anonymous with the given error reason.
func (s *Store) clearLocked(reason string) {
	s.token = ""
	s.user = nil
	s.status = StatusAnonymous
	s.lastError = reason
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Status: s.status, LastError: s.lastError}
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	return snap
}

// notify releases the lock and delivers snap to all subscribers. Callers
// must hold s.mu; it is unlocked on return.
func (s *Store) notify(snap Snapshot) {
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) removePersisted() {
	if err := s.storage.Delete(storage.KeyToken); err != nil {
		s.log.Warn("session: remove persisted token", "err", err)
	}
	if err := s.storage.Delete(storage.KeyCachedUser); err != nil {
		s.log.Warn("session: remove cached user", "err", err)
	}
}

// displayReason unwraps the server's message for lastError; transport-level
// failures fall back to the raw error text.
func displayReason(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func (s *Store) cacheUser(u *api.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := s.storage.Set(storage.KeyCachedUser, string(raw)); err != nil {
		s.log.Warn("session: cache user", "err", err)
	}
}
