// Package api provides the REST client for the DSA Sheet backend.
// Types mirror the backend wire contract without importing server code.
package api

// Difficulty buckets problems and user preference.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// User is the authenticated account returned by login/register/me.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	Avatar      string      `json:"avatar,omitempty"`
	CreatedAt   string      `json:"createdAt,omitempty"`
	Preferences Preferences `json:"preferences"`
	Statistics  Statistics  `json:"statistics"`
}

// Preferences holds per-user UI and practice settings.
type Preferences struct {
	Theme         string            `json:"theme"`
	Language      string            `json:"language"`
	Difficulty    Difficulty        `json:"difficulty"`
	Notifications NotificationPrefs `json:"notifications"`
}

// NotificationPrefs toggles the notification categories a user receives.
type NotificationPrefs struct {
	Email        bool `json:"email"`
	Push         bool `json:"push"`
	Streaks      bool `json:"streaks"`
	Achievements bool `json:"achievements"`
}

// Statistics is the per-user solve record, updated live by the backend.
type Statistics struct {
	TotalSolved           int     `json:"totalSolved"`
	EasySolved            int     `json:"easySolved"`
	MediumSolved          int     `json:"mediumSolved"`
	HardSolved            int     `json:"hardSolved"`
	CurrentStreak         int     `json:"currentStreak"`
	MaxStreak             int     `json:"maxStreak"`
	LastSolvedDate        string  `json:"lastSolvedDate,omitempty"`
	TotalTimeSpent        int     `json:"totalTimeSpent"`
	AverageTimePerProblem float64 `json:"averageTimePerProblem"`
}

// AuthResponse is returned by POST /api/auth/login and /api/auth/register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Topic groups problems under one subject (arrays, graphs, DP, ...).
type Topic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Order       int       `json:"order"`
	Problems    []Problem `json:"problems,omitempty"`
}

// Problem is a single practice exercise. Description is markdown.
type Problem struct {
	ID          string     `json:"id"`
	TopicID     string     `json:"topicId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
	Link        string     `json:"link,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Solved      bool       `json:"solved"`
}

// ProgressUpdate is the body of PUT /api/progress/{problemId}.
type ProgressUpdate struct {
	Solved    bool `json:"solved"`
	TimeSpent int  `json:"timeSpent,omitempty"` // seconds
}

// ProgressResponse echoes the updated problem state and refreshed stats.
type ProgressResponse struct {
	Problem   Problem    `json:"problem"`
	UserStats Statistics `json:"userStats"`
}

// NotificationKind classifies a pushed notification for display.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notification is the payload of the channel's "notification" event.
// IDs are assigned by the server.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationKind `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp,omitempty"`
	Sound     bool             `json:"sound,omitempty"`
}

// ProgressEvent is the payload of the channel's "progress-updated" event.
type ProgressEvent struct {
	UserStats *Statistics `json:"userStats,omitempty"`
}
