// Package app hosts the root Bubble Tea model for the DSA Sheet TUI. It
// bridges the session store, the live channel, and the toast queue into
// the Elm loop via an event channel.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/channel"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/theme"
	"github.com/dsasheet/tui/internal/toast"
	"github.com/dsasheet/tui/internal/views/events"
	"github.com/dsasheet/tui/internal/views/login"
	"github.com/dsasheet/tui/internal/views/meter"
	"github.com/dsasheet/tui/internal/views/problem"
	"github.com/dsasheet/tui/internal/views/statusbar"
	"github.com/dsasheet/tui/internal/views/toasts"
	"github.com/dsasheet/tui/internal/views/topics"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayProblem
	OverlayEvents
)

// Deps bundles the long-lived services the TUI renders.
type Deps struct {
	Client  *api.Client
	Session *session.Store
	Channel *channel.Manager
	Toasts  *toast.Queue
	Log     *slog.Logger
}

// Bridge messages. The store callbacks run on their own goroutines, so
// they only poke the event channel; Update re-reads current state. That
// makes dropped pokes harmless coalescing.
type (
	sessionChangedMsg struct{}
	channelChangedMsg struct{}
	toastsChangedMsg  struct{}
	tickMsg           struct{}
)

// Command results.
type sessionLoadedMsg struct{ err error }

type authResultMsg struct{ err error }

type topicsLoadedMsg struct {
	topics []api.Topic
	err    error
}

type topicLoadedMsg struct {
	topic api.Topic
	open  bool // open the topic vs refresh it in place
	err   error
}

type totalCountedMsg struct{ total int }

type progressSavedMsg struct {
	topic api.Topic
	stats api.Statistics
	err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	keys   KeyMap
	events chan tea.Msg

	width  int
	height int

	snap       session.Snapshot
	chanState  channel.State
	toastItems []api.Notification
	total      int // problems across all topics, 0 until counted
	animating  bool

	overlay Overlay

	loginForm   login.Model
	browse      topics.Model
	statusBar   statusbar.Model
	meter       meter.Model
	eventLog    events.Model
	problemView problem.Model
}

// New creates the root model and hooks the stores into the event
// channel. Call before tea.NewProgram.
func New(deps Deps) Model {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	m := Model{
		deps:      deps,
		keys:      DefaultKeyMap(),
		events:    make(chan tea.Msg, 64),
		loginForm: login.New(),
		browse:    topics.New(),
		statusBar: statusbar.New(),
		meter:     meter.New(),
		eventLog:  events.New(),
	}

	post := func(msg tea.Msg) {
		select {
		case m.events <- msg:
		default:
		}
	}
	deps.Session.Subscribe(func(session.Snapshot) { post(sessionChangedMsg{}) })
	deps.Channel.SetOnState(func(channel.State) { post(channelChangedMsg{}) })
	deps.Toasts.SetOnChange(func() { post(toastsChangedMsg{}) })

	m.snap = deps.Session.Snapshot()
	m.chanState = deps.Channel.State()
	return m
}

// Init restores the persisted session and starts draining the bridge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadSession(), m.waitForEvent())
}

// waitForEvent blocks until a store callback posts a bridge message.
// Every bridge handler must re-issue it.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m Model) loadSession() tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		return sessionLoadedMsg{err: sess.LoadSession(context.Background())}
	}
}

func (m Model) fetchTopics() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ts, err := client.Topics(context.Background())
		return topicsLoadedMsg{topics: ts, err: err}
	}
}

func (m Model) fetchTopic(id string, open bool) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		t, err := client.Topic(context.Background(), id)
		if err != nil {
			return topicLoadedMsg{err: err}
		}
		return topicLoadedMsg{topic: *t, open: open}
	}
}

// countProblems totals the sheet so the completion meter has a
// denominator. Runs once per login.
func (m Model) countProblems(list []api.Topic) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		total := 0
		for _, t := range list {
			full, err := client.Topic(context.Background(), t.ID)
			if err != nil {
				return totalCountedMsg{total: 0}
			}
			total += len(full.Problems)
		}
		return totalCountedMsg{total: total}
	}
}

func (m Model) saveProgress(p api.Problem) tea.Cmd {
	client := m.deps.Client
	upd := api.ProgressUpdate{Solved: !p.Solved}
	return func() tea.Msg {
		resp, err := client.UpdateProgress(context.Background(), p.ID, upd)
		if err != nil {
			return progressSavedMsg{err: err}
		}
		topic, err := client.Topic(context.Background(), p.TopicID)
		if err != nil {
			return progressSavedMsg{err: err}
		}
		return progressSavedMsg{topic: *topic, stats: resp.UserStats}
	}
}

func (m Model) submitAuth(sub login.SubmitMsg) tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		var err error
		if sub.Mode == login.ModeRegister {
			err = sess.Register(context.Background(), sub.Name, sub.Email, sub.Password)
		} else {
			err = sess.Login(context.Background(), sub.Email, sub.Password)
		}
		return authResultMsg{err: err}
	}
}

func (m Model) logout() tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		sess.Logout(context.Background())
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/meter.FPS, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.meter.Width = msg.Width
		m.browse.Width = msg.Width
		m.browse.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionChangedMsg:
		return m.onSessionChanged()

	case channelChangedMsg:
		st := m.deps.Channel.State()
		if st != m.chanState {
			m.eventLog.Record(events.KindChannel, st.String())
			m.chanState = st
		}
		return m, m.waitForEvent()

	case toastsChangedMsg:
		m.toastItems = m.deps.Toasts.Items()
		return m, m.waitForEvent()

	case tickMsg:
		m.animating = m.meter.Tick()
		if m.animating {
			return m, tickCmd()
		}
		return m, nil

	case sessionLoadedMsg:
		if msg.err != nil {
			m.eventLog.Record(events.KindError, "restore: "+msg.err.Error())
		}
		return m, nil

	case authResultMsg:
		m.loginForm.Busy = false
		if msg.err != nil {
			m.loginForm.ErrorText = m.deps.Session.Snapshot().LastError
			if m.loginForm.ErrorText == "" {
				m.loginForm.ErrorText = msg.err.Error()
			}
		}
		return m, nil

	case login.SubmitMsg:
		m.loginForm.Busy = true
		m.loginForm.ErrorText = ""
		return m, tea.Batch(m.submitAuth(msg), m.loginForm.Spin())

	case topicsLoadedMsg:
		if msg.err != nil {
			m.eventLog.Record(events.KindError, "topics: "+msg.err.Error())
			return m, nil
		}
		m.browse.SetTopics(msg.topics)
		return m, m.countProblems(msg.topics)

	case totalCountedMsg:
		m.total = msg.total
		return m, m.retargetMeter()

	case topicLoadedMsg:
		if msg.err != nil {
			m.eventLog.Record(events.KindError, "topic: "+msg.err.Error())
			return m, nil
		}
		if msg.open {
			m.browse.OpenTopic(msg.topic)
		} else {
			m.browse.RefreshTopic(msg.topic)
		}
		return m, nil

	case progressSavedMsg:
		if msg.err != nil {
			m.eventLog.Record(events.KindError, "progress: "+msg.err.Error())
			return m, nil
		}
		m.browse.RefreshTopic(msg.topic)
		if m.overlay == OverlayProblem {
			m.problemView = problem.New(m.browse.SelectedProblem())
		}
		// Statistics also arrive over the channel; applying the REST
		// echo keeps the UI fresh when the channel is down.
		m.deps.Session.UpdateUser(session.UserUpdate{Statistics: &msg.stats})
		return m, nil
	}

	// Remaining messages (spinner ticks, cursor blinks) belong to the
	// login form while it is on screen.
	if !m.snap.Authenticated() && m.overlay == OverlayNone {
		var cmd tea.Cmd
		m.loginForm, cmd = m.loginForm.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) onSessionChanged() (tea.Model, tea.Cmd) {
	prev := m.snap
	m.snap = m.deps.Session.Snapshot()

	cmds := []tea.Cmd{m.waitForEvent()}

	if prev.Status != m.snap.Status {
		m.eventLog.Record(events.KindSession, m.snap.Status.String())
	}

	switch {
	case m.snap.Authenticated() && !prev.Authenticated():
		m.loginForm = login.New()
		cmds = append(cmds, m.fetchTopics())
	case !m.snap.Authenticated() && prev.Authenticated():
		m.browse = topics.New()
		m.overlay = OverlayNone
		m.total = 0
		form := login.New()
		form.ErrorText = m.snap.LastError
		m.loginForm = form
	}

	if cmd := m.retargetMeter(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// retargetMeter feeds the current statistics into the meter and kicks
// the animation loop if it is not already running.
func (m *Model) retargetMeter() tea.Cmd {
	var stats api.Statistics
	if m.snap.User != nil {
		stats = m.snap.User.Statistics
	}
	m.meter.SetStats(stats, m.total)
	if !m.animating {
		m.animating = true
		return tickCmd()
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays swallow input first.
	switch m.overlay {
	case OverlayProblem:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Down):
			m.problemView.ScrollDown(2)
		case key.Matches(msg, m.keys.Up):
			m.problemView.ScrollUp(2)
		case key.Matches(msg, m.keys.Solve):
			if p := m.browse.SelectedProblem(); p != nil {
				return m, m.saveProgress(*p)
			}
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case OverlayEvents:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Down):
			m.eventLog.ScrollDown(2)
		case key.Matches(msg, m.keys.Up):
			m.eventLog.ScrollUp(2)
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	if !m.snap.Authenticated() {
		// The form owns most keys while signing in; ctrl+c still quits.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.loginForm.Busy = m.snap.Status == session.StatusLoading
		var cmd tea.Cmd
		m.loginForm, cmd = m.loginForm.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.browse.MoveDown()

	case key.Matches(msg, m.keys.Up):
		m.browse.MoveUp()

	case key.Matches(msg, m.keys.Enter):
		if m.browse.Browsing() {
			if t := m.browse.SelectedTopic(); t != nil {
				return m, m.fetchTopic(t.ID, true)
			}
			return m, nil
		}
		if p := m.browse.SelectedProblem(); p != nil {
			m.problemView = problem.New(p)
			m.overlay = OverlayProblem
		}

	case key.Matches(msg, m.keys.Escape):
		m.browse.CloseTopic()

	case key.Matches(msg, m.keys.Solve):
		if p := m.browse.SelectedProblem(); p != nil {
			return m, m.saveProgress(*p)
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.browse.Browsing() {
			return m, m.fetchTopics()
		}
		if t := m.browse.SelectedTopic(); t != nil {
			return m, m.fetchTopic(t.ID, false)
		}

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents

	case key.Matches(msg, m.keys.Dismiss):
		if len(m.toastItems) > 0 {
			m.deps.Toasts.Dismiss(m.toastItems[0].ID)
		}

	case key.Matches(msg, m.keys.Logout):
		return m, m.logout()
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayProblem:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.problemView.View(m.height))
	case OverlayEvents:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.eventLog.View(m.width, m.height))
	}

	if !m.snap.Authenticated() {
		if m.snap.Status == session.StatusUninitialized {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
				theme.StyleDimmed.Render("Restoring session..."))
		}
		m.loginForm.Busy = m.snap.Status == session.StatusLoading
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.loginForm.View())
	}

	// The status bar renders whatever the model currently knows; feeding
	// it here keeps it current without chasing every message that touches
	// the session or channel.
	m.statusBar.Session = m.snap
	m.statusBar.Channel = m.chanState
	sections := []string{m.statusBar.View()}

	if stack := toasts.View(m.toastItems); stack != "" {
		sections = append(sections, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, stack))
	}

	sections = append(sections,
		m.meter.View(),
		m.browse.View(),
		theme.StyleDimmed.Render("  j/k:move  enter:open  s:solve  r:refresh  e:events  x:dismiss  l:sign out  q:quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
