// Package login renders the sign-in / registration form shown while the
// session is anonymous.
package login

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/theme"
)

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

const panelWidth = 48

// Field indices into Model.inputs.
const (
	fieldName = iota
	fieldEmail
	fieldPassword
	fieldConfirm
	fieldCount
)

// SubmitMsg is emitted when the user submits a complete form.
type SubmitMsg struct {
	Mode     Mode
	Name     string
	Email    string
	Password string
}

// Model holds the login form state.
type Model struct {
	Mode      Mode
	Busy      bool
	ErrorText string

	inputs []textinput.Model
	focus  int
	sp     spinner.Model
}

// New creates a login form with the email field focused.
func New() Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 128
		ti.Width = panelWidth - 16
		inputs[i] = ti
	}
	inputs[fieldName].Placeholder = "Ada Lovelace"
	inputs[fieldEmail].Placeholder = "you@example.com"
	inputs[fieldPassword].Placeholder = "password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldConfirm].Placeholder = "repeat password"
	inputs[fieldConfirm].EchoMode = textinput.EchoPassword

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorAccent)

	m := Model{inputs: inputs, focus: fieldEmail, sp: sp}
	m.inputs[m.focus].Focus()
	return m
}

// Spin returns the command that drives the busy spinner. Issue it when
// setting Busy.
func (m Model) Spin() tea.Cmd {
	return m.sp.Tick
}

// ToggleMode switches between sign-in and registration and clears any
// stale error.
func (m *Model) ToggleMode() {
	if m.Mode == ModeLogin {
		m.Mode = ModeRegister
	} else {
		m.Mode = ModeLogin
	}
	m.ErrorText = ""
	m.setFocus(m.visible()[0])
}

// visible returns the field indices active in the current mode, in
// navigation order.
func (m Model) visible() []int {
	if m.Mode == ModeRegister {
		return []int{fieldName, fieldEmail, fieldPassword, fieldConfirm}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m *Model) setFocus(idx int) {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = idx
	m.inputs[idx].Focus()
}

func (m *Model) moveFocus(delta int) {
	fields := m.visible()
	pos := 0
	for i, f := range fields {
		if f == m.focus {
			pos = i
			break
		}
	}
	pos = (pos + delta + len(fields)) % len(fields)
	m.setFocus(fields[pos])
}

// Update handles key input for the form. A submit attempt on a valid
// form returns a command carrying a SubmitMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		if !m.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(tick)
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok && !m.Busy {
		switch key.String() {
		case "tab", "down":
			m.moveFocus(1)
			return m, nil
		case "shift+tab", "up":
			m.moveFocus(-1)
			return m, nil
		case "enter":
			fields := m.visible()
			if m.focus != fields[len(fields)-1] {
				m.moveFocus(1)
				return m, nil
			}
			return m.submit()
		case "ctrl+r":
			m.ToggleMode()
			return m, nil
		}
	}

	var cmd tea.Cmd
	if !m.Busy {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()

	if email == "" || password == "" {
		m.ErrorText = "Email and password are required"
		return m, nil
	}
	if m.Mode == ModeRegister {
		if strings.TrimSpace(m.inputs[fieldName].Value()) == "" {
			m.ErrorText = "Name is required"
			return m, nil
		}
		if m.inputs[fieldConfirm].Value() != password {
			m.ErrorText = "Passwords do not match"
			return m, nil
		}
	}

	m.ErrorText = ""
	sub := SubmitMsg{
		Mode:     m.Mode,
		Name:     strings.TrimSpace(m.inputs[fieldName].Value()),
		Email:    email,
		Password: password,
	}
	return m, func() tea.Msg { return sub }
}

// View renders the form panel.
func (m Model) View() string {
	title := "Sign In"
	action := "ctrl+r:register instead"
	if m.Mode == ModeRegister {
		title = "Create Account"
		action = "ctrl+r:sign in instead"
	}

	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render(title) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	labels := map[int]string{
		fieldName:     "Name",
		fieldEmail:    "Email",
		fieldPassword: "Password",
		fieldConfirm:  "Confirm",
	}
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorDimmed).Width(10)
	for _, f := range m.visible() {
		b.WriteString(labelStyle.Render(labels[f]+":") + m.inputs[f].View() + "\n")
	}

	if m.Busy {
		b.WriteString("\n" + m.sp.View() + theme.StyleDimmed.Render("Signing in...") + "\n")
	} else if m.ErrorText != "" {
		b.WriteString("\n" + theme.StyleError.Render(m.ErrorText) + "\n")
	}

	b.WriteString("\n" + theme.StyleDimmed.Render("enter:submit  tab:next field  "+action))

	return theme.StyleBorder.Width(panelWidth).Padding(0, 1).Render(b.String())
}
