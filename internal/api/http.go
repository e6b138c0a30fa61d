package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnauthorized is returned (wrapped) whenever the backend answers 401.
// The session store treats it as a global "token revoked" signal.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx response carrying the server's human-readable message,
// suitable for direct display.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// TokenFunc supplies the current bearer token; empty means unauthenticated.
// The client reads it fresh on every request so a token refreshed mid-flight
// is honored.
type TokenFunc func() string

// Client makes REST calls to the DSA Sheet backend.
type Client struct {
	baseURL string
	token   TokenFunc
	client  *http.Client

	// onUnauthorized fires once per 401 response, after the request
	// returns. Used to force a global logout.
	onUnauthorized func()
}

// NewClient creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:5000").
func NewClient(baseURL string, token TokenFunc) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetUnauthorizedHook registers the callback invoked on any 401 response.
// Must be called before the client is shared between goroutines.
func (c *Client) SetUnauthorizedHook(fn func()) { c.onUnauthorized = fn }

// Login sends POST /api/auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.post(ctx, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register sends POST /api/auth/register.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var out AuthResponse
	if err := c.post(ctx, "/api/auth/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches GET /api/auth/me, resolving the persisted token to a user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout sends POST /api/auth/logout. Callers treat failure as advisory.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/api/auth/logout", nil, nil)
}

// Topics fetches GET /api/topics (without problem bodies).
func (c *Client) Topics(ctx context.Context) ([]Topic, error) {
	var out []Topic
	if err := c.get(ctx, "/api/topics", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Topic fetches GET /api/topics/{id} including its problems.
func (c *Client) Topic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	if err := c.get(ctx, "/api/topics/"+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateProgress sends PUT /api/progress/{problemId}.
func (c *Client) UpdateProgress(ctx context.Context, problemID string, upd ProgressUpdate) (*ProgressResponse, error) {
	var out ProgressResponse
	if err := c.do(ctx, http.MethodPut, "/api/progress/"+problemID, upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, &Error{
			Status:  resp.StatusCode,
			Message: decodeError(resp),
		})
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// decodeError extracts the server's human-readable message from an error
// payload, falling back to the raw body.
func decodeError(resp *http.Response) string {
	data, _ := io.ReadAll(resp.Body)
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if len(data) > 0 {
		return fmt.Sprintf("%d %s", resp.StatusCode, string(data))
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
