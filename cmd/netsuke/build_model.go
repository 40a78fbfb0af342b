package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// buildModel drives the live progress view while the ninja subprocess runs
// (spec §1's "external collaborator" boundary — progress/UX sits outside
// the compiler core but is still part of the shipped tool). Styled after
// cmd/tcpo's bubbletea model.
type buildModel struct {
	spinner  spinner.Model
	lines    []string
	maxLines int
	done     bool
	err      error
}

// lineMsg is one line of ninja's combined stdout/stderr output.
type lineMsg string

// doneMsg reports the subprocess's final outcome.
type doneMsg struct{ err error }

var (
	buildStyleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	buildStyleLine  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	buildStyleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1)
	buildStyleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
)

func newBuildModel() buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	return buildModel{spinner: s, maxLines: 10}
}

func (m buildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case lineMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > m.maxLines {
			m.lines = m.lines[len(m.lines)-m.maxLines:]
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m buildModel) View() string {
	var b strings.Builder
	if m.done {
		if m.err != nil {
			b.WriteString(buildStyleErr.Render(fmt.Sprintf("✗ build failed: %v", m.err)))
		} else {
			b.WriteString(buildStyleOK.Render("✓ build finished"))
		}
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(buildStyleTitle.Render(m.spinner.View() + " running ninja"))
	b.WriteString("\n")
	for _, l := range m.lines {
		b.WriteString(buildStyleLine.Render(l))
		b.WriteString("\n")
	}
	return b.String()
}
