// Package storage is the durable client-side key-value surface. The session
// store keeps the bearer token here (key "token") and a cached copy of the
// signed-in profile so `whoami` works without a round trip.
package storage

// Well-known keys.
const (
	KeyToken      = "token"
	KeyCachedUser = "user"
)

// Store persists string values by key. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}
