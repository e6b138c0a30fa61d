package channel

import "encoding/json"

// Message is the envelope for everything crossing the live channel.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is one live connection to the backend.
type Conn interface {
	// Emit writes a single message. Safe for concurrent use.
	Emit(event string, payload any) error
	Close() error
}

// Dialer opens connections. onMessage and onClose are invoked from the
// connection's read loop; onClose fires at most once, when the connection
// drops for any reason (including Close).
type Dialer interface {
	Dial(token string, onMessage func(Message), onClose func(error)) (Conn, error)
}
