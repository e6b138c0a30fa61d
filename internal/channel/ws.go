package channel

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WebsocketDialer opens connections to the backend's /ws endpoint,
// presenting the bearer token at the handshake.
type WebsocketDialer struct {
	URL string // e.g. "ws://127.0.0.1:5000/ws"
}

func (d *WebsocketDialer) Dial(token string, onMessage func(Message), onClose func(error)) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(d.URL, header)
	if err != nil {
		return nil, err
	}

	c := &wsConn{conn: conn, done: make(chan struct{})}
	go c.readLoop(onMessage, onClose)
	go c.pingLoop()
	return c, nil
}

type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex // serialises all writes (emit, ping)

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) Emit(event string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(struct {
		Event   string `json:"event"`
		Payload any    `json:"payload"`
	}{Event: event, Payload: payload})
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// readLoop delivers inbound messages until the connection drops, then fires
// onClose exactly once.
func (c *wsConn) readLoop(onMessage func(Message), onClose func(error)) {
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			onClose(err)
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			slog.Debug("channel: skipping malformed frame")
			continue
		}
		onMessage(msg)
	}
}

// pingLoop keeps the connection fresh. It exits on Close or write failure;
// a failed ping surfaces through the read loop's deadline.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

var _ Dialer = (*WebsocketDialer)(nil)
