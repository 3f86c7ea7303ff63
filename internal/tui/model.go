// Package tui is a terminal front end for a single local reviewer.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/review"
)

// Reviewer is the navigation engine as seen by the terminal UI.
type Reviewer interface {
	Login(ctx context.Context, sess review.Session, username, password string) (review.Result, error)
	Logout(ctx context.Context, sess review.Session) (review.Result, error)
	OpenCase(ctx context.Context, sess review.Session, caseID string) (review.Result, error)
	SelectPhase(ctx context.Context, sess review.Session, phaseID string) (review.Result, error)
	StepSlice(ctx context.Context, sess review.Session, dir review.Direction) (review.Result, error)
	SaveDiagnosis(ctx context.Context, sess review.Session, text string) (review.Result, error)
	BackToSelection(ctx context.Context, sess review.Session) (review.Result, error)
	OpenAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	CloseAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	View(ctx context.Context, sess review.Session) (review.View, error)
	AdminLog(ctx context.Context, sess review.Session, key string) ([]audit.Event, error)
}

type transition func(context.Context, review.Session) (review.Result, error)

// Model is the bubbletea model of one review session.
type Model struct {
	ctx    context.Context
	engine Reviewer
	styles Styles

	sess review.Session
	view review.View

	username  textinput.Model
	password  textinput.Model
	diagnosis textarea.Model
	logView   viewport.Model

	cursor   int
	editing  bool
	logKey   string
	messages []string
	width    int
	height   int
}

// New creates a model on the login screen.
func New(ctx context.Context, engine Reviewer) Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	diagnosis := textarea.New()
	diagnosis.Placeholder = "Diagnosis"
	diagnosis.ShowLineNumbers = false
	diagnosis.SetHeight(5)

	m := Model{
		ctx:       ctx,
		engine:    engine,
		styles:    DefaultStyles(),
		sess:      review.NewSession(),
		username:  username,
		password:  password,
		diagnosis: diagnosis,
		logView:   viewport.New(80, 15),
	}
	m.refresh()
	return m
}

// Session returns the current session state.
func (m Model) Session() review.Session {
	return m.sess
}

// Messages returns the warnings and errors of the last action.
func (m Model) Messages() []string {
	return m.messages
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logView.Width = msg.Width
		m.logView.Height = max(msg.Height-10, 5)
		m.diagnosis.SetWidth(min(max(msg.Width-4, 20), 100))
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.sess.Authenticated() {
				m.apply(m.engine.Logout)
			}
			return m, tea.Quit
		}
		if msg.Type == tea.KeyCtrlX && m.sess.Authenticated() {
			m.apply(m.engine.Logout)
			m.resetLogin()
			return m, nil
		}
		switch m.sess.Page {
		case review.PageCaseSelection:
			return m.updateCases(msg)
		case review.PageViewer:
			return m.updateViewer(msg)
		case review.PageAdmin:
			return m.updateAdmin(msg)
		default:
			return m.updateLogin(msg)
		}
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.toggleLoginFocus()
		return m, nil
	case "enter":
		if m.username.Focused() {
			m.toggleLoginFocus()
			return m, nil
		}
		username, password := m.username.Value(), m.password.Value()
		if m.apply(func(ctx context.Context, sess review.Session) (review.Result, error) {
			return m.engine.Login(ctx, sess, username, password)
		}) {
			m.cursor = 0
			m.username.Reset()
		}
		m.password.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateCases(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.moveCursor(-1, len(m.view.Cases))
	case "down", "j":
		m.moveCursor(1, len(m.view.Cases))
	case "enter":
		if m.cursor < len(m.view.Cases) {
			caseID := m.view.Cases[m.cursor].ID
			if m.apply(func(ctx context.Context, sess review.Session) (review.Result, error) {
				return m.engine.OpenCase(ctx, sess, caseID)
			}) {
				m.diagnosis.SetValue(m.view.Diagnosis)
				m.editing = false
			}
		}
	case "a":
		if m.sess.IsAdmin && m.apply(m.engine.OpenAdmin) {
			m.cursor = 0
			m.logKey = ""
		}
	}
	return m, nil
}

func (m Model) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlS {
		m.save()
		return m, nil
	}
	if m.editing {
		if msg.Type == tea.KeyEsc {
			m.editing = false
			m.diagnosis.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.diagnosis, cmd = m.diagnosis.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		m.step(review.DirectionUp)
	case "down", "j":
		m.step(review.DirectionDown)
	case "tab":
		m.cyclePhase(1)
	case "shift+tab":
		m.cyclePhase(-1)
	case "e", "i":
		m.editing = true
		return m, m.diagnosis.Focus()
	case "esc", "b":
		if m.apply(m.engine.BackToSelection) {
			m.cursor = 0
			m.diagnosis.Reset()
		}
	}
	return m, nil
}

func (m Model) updateAdmin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var logs []string
	if m.view.Admin != nil {
		logs = m.view.Admin.Logs
	}

	switch msg.String() {
	case "up", "k":
		m.moveCursor(-1, len(logs))
		return m, nil
	case "down", "j":
		m.moveCursor(1, len(logs))
		return m, nil
	case "enter":
		if m.cursor < len(logs) {
			m.openLog(logs[m.cursor])
		}
		return m, nil
	case "esc", "b":
		if m.logKey != "" {
			m.logKey = ""
			return m, nil
		}
		if m.apply(m.engine.CloseAdmin) {
			m.cursor = 0
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m *Model) step(dir review.Direction) {
	m.apply(func(ctx context.Context, sess review.Session) (review.Result, error) {
		return m.engine.StepSlice(ctx, sess, dir)
	})
}

func (m *Model) cyclePhase(delta int) {
	phases := m.view.Phases
	if len(phases) == 0 {
		return
	}
	idx := -1
	for i, p := range phases {
		if p == m.sess.SelectedPhase {
			idx = i
		}
	}
	var next int
	if idx < 0 {
		if delta < 0 {
			next = len(phases) - 1
		}
	} else {
		next = (idx + delta + len(phases)) % len(phases)
	}
	phase := phases[next]
	m.apply(func(ctx context.Context, sess review.Session) (review.Result, error) {
		return m.engine.SelectPhase(ctx, sess, phase)
	})
}

func (m *Model) save() {
	text := m.diagnosis.Value()
	if m.apply(func(ctx context.Context, sess review.Session) (review.Result, error) {
		return m.engine.SaveDiagnosis(ctx, sess, text)
	}) {
		m.editing = false
		m.diagnosis.Blur()
		m.diagnosis.Reset()
	}
}

func (m *Model) openLog(key string) {
	events, err := m.engine.AdminLog(m.ctx, m.sess, key)
	if err != nil {
		m.messages = []string{err.Error()}
		return
	}
	m.logKey = key
	m.logView.SetContent(renderLog(events))
	m.logView.GotoTop()
}

// apply runs one transition and refreshes the view. It reports whether the
// transition succeeded.
func (m *Model) apply(fn transition) bool {
	res, err := fn(m.ctx, m.sess)
	if res.Session.Page != "" {
		m.sess = res.Session
	}
	m.messages = append([]string(nil), res.Warnings...)
	if err != nil {
		m.messages = append(m.messages, err.Error())
	}
	m.refresh()
	return err == nil
}

func (m *Model) refresh() {
	v, err := m.engine.View(m.ctx, m.sess)
	if err != nil {
		m.messages = append(m.messages, err.Error())
		return
	}
	m.view = v
	m.messages = append(m.messages, v.Warnings...)
}

func (m *Model) moveCursor(delta, n int) {
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
}

func (m *Model) toggleLoginFocus() {
	if m.username.Focused() {
		m.username.Blur()
		m.password.Focus()
		return
	}
	m.password.Blur()
	m.username.Focus()
}

func (m *Model) resetLogin() {
	m.cursor = 0
	m.editing = false
	m.logKey = ""
	m.username.Reset()
	m.password.Reset()
	m.password.Blur()
	m.username.Focus()
	m.diagnosis.Reset()
}

func renderLog(events []audit.Event) string {
	if len(events) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(audit.Columns, " | "))
	sb.WriteString("\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "%s | %s | %s | %s | %s | %s\n",
			e.Timestamp.Format(audit.TimestampLayout), e.Username, e.Action, e.Case, e.Series, e.Details)
	}
	return sb.String()
}
