// Package devserver is a self-contained stub of the DSA Sheet backend: the
// REST contract plus the live channel, backed by in-memory data. It exists
// so the TUI can be demoed offline and so integration tests can exercise the
// real websocket transport end to end. It is not a production server.
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dsasheet/tui/internal/api"
)

type account struct {
	user     api.User
	password string
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	userID  string
	room    string
}

// Server holds the stub backend's state. Safe for concurrent use.
type Server struct {
	log      *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	accounts map[string]*account // keyed by email
	tokens   map[string]string   // token -> user id
	topics   []api.Topic
	solved   map[string]map[string]bool // user id -> problem id
	clients  map[*wsClient]struct{}
}

// New creates a stub backend seeded with the demo account and topic sheet.
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:      log,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		solved:   make(map[string]map[string]bool),
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.seed()

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", s.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/topics", s.handleTopics).Methods(http.MethodGet)
	r.HandleFunc("/api/topics/{id}", s.handleTopic).Methods(http.MethodGet)
	r.HandleFunc("/api/progress/{problemId}", s.handleProgress).Methods(http.MethodPut)
	r.HandleFunc("/ws", s.handleWS)
	s.router = r
	return s
}

// Handler returns the HTTP handler for the whole stub (REST + /ws).
func (s *Server) Handler() http.Handler { return s.router }

// DemoCredentials returns the seeded account's login.
func DemoCredentials() (email, password string) {
	return "demo@dsasheet.com", "Demo123!"
}

func (s *Server) seed() {
	demo := &account{
		password: "Demo123!",
		user: api.User{
			ID:        uuid.NewString(),
			Name:      "Demo User",
			Email:     "demo@dsasheet.com",
			Role:      "user",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Preferences: api.Preferences{
				Theme:      "dark",
				Language:   "go",
				Difficulty: api.DifficultyMedium,
				Notifications: api.NotificationPrefs{
					Push: true, Streaks: true, Achievements: true,
				},
			},
			Statistics: api.Statistics{
				TotalSolved: 12, EasySolved: 7, MediumSolved: 4, HardSolved: 1,
				CurrentStreak: 3, MaxStreak: 9, TotalTimeSpent: 14400,
			},
		},
	}
	s.accounts[demo.user.Email] = demo
	s.topics = seedTopics()
}

func seedTopics() []api.Topic {
	mk := func(topicID, title string, diff api.Difficulty, desc string) api.Problem {
		return api.Problem{
			ID:          uuid.NewString(),
			TopicID:     topicID,
			Title:       title,
			Difficulty:  diff,
			Description: desc,
		}
	}

	arrays := api.Topic{ID: uuid.NewString(), Name: "Arrays & Hashing", Order: 1,
		Description: "Contiguous storage, prefix sums, and hash-map tricks."}
	arrays.Problems = []api.Problem{
		mk(arrays.ID, "Two Sum", api.DifficultyEasy,
			"# Two Sum\n\nGiven an array `nums` and a target, return indices of the two numbers that add up to it.\n\n- Exactly one solution exists.\n- You may not use the same element twice."),
		mk(arrays.ID, "Product of Array Except Self", api.DifficultyMedium,
			"# Product of Array Except Self\n\nReturn an array where each element is the product of all other elements, **without division** and in `O(n)`."),
	}

	graphs := api.Topic{ID: uuid.NewString(), Name: "Graphs", Order: 2,
		Description: "Traversals, connectivity, and topological order."}
	graphs.Problems = []api.Problem{
		mk(graphs.ID, "Number of Islands", api.DifficultyMedium,
			"# Number of Islands\n\nCount the connected components of `'1'` cells in a 2D grid. Flood fill or union-find both work."),
		mk(graphs.ID, "Course Schedule", api.DifficultyMedium,
			"# Course Schedule\n\nGiven prerequisite pairs, decide whether all courses can be finished. This is cycle detection in a directed graph."),
	}

	dp := api.Topic{ID: uuid.NewString(), Name: "Dynamic Programming", Order: 3,
		Description: "Overlapping subproblems and optimal substructure."}
	dp.Problems = []api.Problem{
		mk(dp.ID, "Climbing Stairs", api.DifficultyEasy,
			"# Climbing Stairs\n\nYou can climb 1 or 2 steps at a time. How many distinct ways reach step `n`?"),
		mk(dp.ID, "Longest Increasing Subsequence", api.DifficultyHard,
			"# Longest Increasing Subsequence\n\nFind the length of the longest strictly increasing subsequence. `O(n log n)` with patience sorting."),
	}

	return []api.Topic{arrays, graphs, dp}
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(body.Email)]
	if !ok || acct.password != body.Password {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = acct.user.ID
	user := s.userWithProgressLocked(acct)
	s.mu.Unlock()

	writeJSON(w, api.AuthResponse{Token: token, User: user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.Name == "" || body.Email == "" || len(body.Password) < 6 {
		writeError(w, http.StatusBadRequest, "name, email and a password of at least 6 characters are required")
		return
	}

	email := strings.ToLower(body.Email)
	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "An account with this email already exists")
		return
	}
	acct := &account{
		password: body.Password,
		user: api.User{
			ID:        uuid.NewString(),
			Name:      body.Name,
			Email:     email,
			Role:      "user",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Preferences: api.Preferences{
				Theme: "system", Difficulty: api.DifficultyEasy,
				Notifications: api.NotificationPrefs{Push: true},
			},
		},
	}
	s.accounts[email] = acct
	token := uuid.NewString()
	s.tokens[token] = acct.user.ID
	user := s.userWithProgressLocked(acct)
	s.mu.Unlock()

	writeJSON(w, api.AuthResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct := s.authenticate(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	s.mu.Lock()
	user := s.userWithProgressLocked(acct)
	s.mu.Unlock()
	writeJSON(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// --- topics & progress ---

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	acct := s.authenticate(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	s.mu.Lock()
	out := make([]api.Topic, len(s.topics))
	for i, topic := range s.topics {
		t := topic
		t.Problems = nil // list view omits problem bodies
		out[i] = t
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	acct := s.authenticate(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range s.topics {
		if topic.ID == id {
			t := topic
			t.Problems = make([]api.Problem, len(topic.Problems))
			for i, p := range topic.Problems {
				p.Solved = s.solved[acct.user.ID][p.ID]
				t.Problems[i] = p
			}
			writeJSON(w, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "topic not found")
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	acct := s.authenticate(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	var upd api.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	problemID := mux.Vars(r)["problemId"]

	s.mu.Lock()
	problem := s.findProblemLocked(problemID)
	if problem == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	userID := acct.user.ID
	if s.solved[userID] == nil {
		s.solved[userID] = make(map[string]bool)
	}
	wasSolved := s.solved[userID][problemID]
	s.solved[userID][problemID] = upd.Solved
	if upd.Solved && !wasSolved {
		bumpStats(&acct.user.Statistics, problem.Difficulty, upd.TimeSpent)
	}
	stats := acct.user.Statistics
	out := *problem
	out.Solved = upd.Solved
	s.mu.Unlock()

	// Fan the new statistics out to the user's live sessions, the same
	// push the client would get from another device.
	s.pushToRoom(userID, "progress-updated", api.ProgressEvent{UserStats: &stats})
	if upd.Solved && !wasSolved {
		s.PushNotification(userID, api.Notification{
			Type:    api.NotifySuccess,
			Title:   "Problem solved",
			Message: fmt.Sprintf("%q marked as solved. Total: %d", problem.Title, stats.TotalSolved),
			Sound:   true,
		})
	}

	writeJSON(w, api.ProgressResponse{Problem: out, UserStats: stats})
}

func bumpStats(st *api.Statistics, diff api.Difficulty, timeSpent int) {
	st.TotalSolved++
	switch diff {
	case api.DifficultyEasy:
		st.EasySolved++
	case api.DifficultyMedium:
		st.MediumSolved++
	case api.DifficultyHard:
		st.HardSolved++
	}
	st.CurrentStreak++
	if st.CurrentStreak > st.MaxStreak {
		st.MaxStreak = st.CurrentStreak
	}
	st.TotalTimeSpent += timeSpent
	st.LastSolvedDate = time.Now().UTC().Format(time.RFC3339)
	if st.TotalSolved > 0 {
		st.AverageTimePerProblem = float64(st.TotalTimeSpent) / float64(st.TotalSolved)
	}
}

// --- websocket ---

type wireMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	acct := s.authenticate(r)
	if acct == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("devserver: ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, userID: acct.user.ID}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("devserver: ws client connected", "user", acct.user.Email)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Event == "join-room" {
			var room string
			if json.Unmarshal(msg.Payload, &room) == nil && room == "user-"+c.userID {
				s.mu.Lock()
				c.room = room
				s.mu.Unlock()
			} else {
				s.log.Debug("devserver: rejected join-room", "room", room, "user", c.userID)
			}
		}
	}
}

// PushNotification sends a notification event to every live session of the
// given user. A missing id is filled in server-side.
func (s *Server) PushNotification(userID string, n api.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp == "" {
		n.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	s.pushToRoom(userID, "notification", n)
}

func (s *Server) pushToRoom(userID, event string, payload any) {
	room := "user-" + userID
	s.mu.Lock()
	targets := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		if c.room == room {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg, _ := json.Marshal(wireMessage{Event: event, Payload: data})
	for _, c := range targets {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Debug("devserver: push failed", "err", err)
		}
		c.writeMu.Unlock()
	}
}

// --- helpers ---

func (s *Server) authenticate(r *http.Request) *account {
	token := bearerToken(r)
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	if !ok {
		return nil
	}
	for _, acct := range s.accounts {
		if acct.user.ID == userID {
			return acct
		}
	}
	return nil
}

func (s *Server) userWithProgressLocked(acct *account) api.User {
	return acct.user
}

func (s *Server) findProblemLocked(id string) *api.Problem {
	for ti := range s.topics {
		for pi := range s.topics[ti].Problems {
			if s.topics[ti].Problems[pi].ID == id {
				return &s.topics[ti].Problems[pi]
			}
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
