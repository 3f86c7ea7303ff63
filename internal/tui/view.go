package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rpggio/casereview/internal/domain/review"
)

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("Case Review"))
	sb.WriteString("\n")
	if m.sess.Authenticated() {
		sb.WriteString(m.styles.Muted.Render("Signed in as " + m.sess.Username))
		sb.WriteString("\n")
	}
	for _, msg := range m.messages {
		sb.WriteString(m.styles.Warning.Render("! " + msg))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch m.sess.Page {
	case review.PageCaseSelection:
		sb.WriteString(m.viewCases())
	case review.PageViewer:
		sb.WriteString(m.viewViewer())
	case review.PageAdmin:
		sb.WriteString(m.viewAdmin())
	default:
		sb.WriteString(m.viewLogin())
	}
	return sb.String()
}

func (m Model) viewLogin() string {
	return strings.Join([]string{
		m.styles.Title.Render("Sign in"),
		m.username.View(),
		m.password.View(),
		m.styles.Footer.Render("tab switch field • enter log in • ctrl+c quit"),
	}, "\n")
}

func (m Model) viewCases() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Cases"))
	sb.WriteString("\n")
	for i, c := range m.view.Cases {
		line := c.ID
		if c.Done {
			line = m.styles.Done.Render(c.ID + " (done)")
		}
		if i == m.cursor {
			sb.WriteString(m.styles.Selected.Render("> ") + line)
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	help := "↑/↓ move • enter open • ctrl+x log out • ctrl+c quit"
	if m.sess.IsAdmin {
		help = "a admin • " + help
	}
	sb.WriteString(m.styles.Footer.Render(help))
	return sb.String()
}

func (m Model) viewViewer() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(m.sess.SelectedCase))
	sb.WriteString("\n")

	var phases []string
	for _, p := range m.view.Phases {
		if p == m.sess.SelectedPhase {
			phases = append(phases, m.styles.Selected.Render("["+p+"]"))
		} else {
			phases = append(phases, p)
		}
	}
	sb.WriteString("Series: " + strings.Join(phases, "  "))
	sb.WriteString("\n")

	switch {
	case m.view.Slice != nil:
		fmt.Fprintf(&sb, "Slice %d / %d  %s\n", m.view.Slice.Index, m.view.Slice.Count, m.styles.Muted.Render(m.view.Slice.Name))
	case m.sess.SelectedPhase == "":
		sb.WriteString(m.styles.Muted.Render("Select a series with tab"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.diagnosis.View())
	sb.WriteString("\n")

	help := "tab series • ↑/↓ slice • e edit diagnosis • ctrl+s save • b back"
	if m.editing {
		help = "esc stop editing • ctrl+s save"
	}
	sb.WriteString(m.styles.Footer.Render(help))
	return sb.String()
}

func (m Model) viewAdmin() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Admin"))
	sb.WriteString("\n")
	if m.logKey != "" {
		sb.WriteString(m.styles.Title.Render("Log " + m.logKey))
		sb.WriteString("\n")
		sb.WriteString(m.logView.View())
		sb.WriteString("\n")
		sb.WriteString(m.styles.Footer.Render("pgup/pgdn scroll • esc close log"))
		return sb.String()
	}

	if m.view.Admin != nil {
		sb.WriteString("Users:\n")
		for _, u := range m.view.Admin.Users {
			role := ""
			if u.IsAdmin {
				role = m.styles.Muted.Render(" (admin)")
			}
			sb.WriteString("  " + u.Username + role + "\n")
		}
		sb.WriteString("\nLogs:\n")
		for i, key := range m.view.Admin.Logs {
			if i == m.cursor {
				sb.WriteString(m.styles.Selected.Render("> ") + key + "\n")
			} else {
				sb.WriteString("  " + key + "\n")
			}
		}
	}
	sb.WriteString(m.styles.Footer.Render("↑/↓ move • enter read log • esc back to cases"))
	return sb.String()
}

// Run starts the terminal UI and blocks until the user quits.
func Run(m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(m.ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
