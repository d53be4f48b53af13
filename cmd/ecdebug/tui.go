// cmd/ecdebug/tui.go
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tamzrod/ecdebug/internal/device"
	"github.com/tamzrod/ecdebug/internal/status"
)

// maxScrollback bounds the text kept in the view.
const maxScrollback = 256 << 10

// Messages
type tickMsg time.Time
type consoleDataMsg []byte
type consoleDoneMsg struct{ err error }

type consoleModel struct {
	dev      *device.Device
	view     viewport.Model
	log      strings.Builder
	ready    bool
	status   status.Snapshot
	note     string
	err      error
	quitting bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

func runConsoleTUI(ctx context.Context, d *device.Device) error {
	m := &consoleModel{dev: d}
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	p, _ := d.Console()
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := p.Read(ctx, buf, false)
			if err != nil {
				prog.Send(consoleDoneMsg{err: err})
				return
			}
			prog.Send(consoleDataMsg(append([]byte(nil), buf[:n]...)))
		}
	}()

	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (m *consoleModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if m.dev.Suspended() {
				m.dev.Resume()
				m.note = "resumed"
			} else {
				m.dev.Suspend()
				m.note = "suspended"
			}
			return m, nil
		case "p":
			m.dev.HandlePanic()
			m.note = "forced drain"
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.view.SetContent(m.log.String())
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}

	case tickMsg:
		m.dev.Observe()
		m.dev.Tick()
		m.status = m.dev.Status()
		return m, tickCmd()

	case consoleDataMsg:
		m.append(msg)
		return m, nil

	case consoleDoneMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	if m.ready {
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) append(data []byte) {
	m.log.Write(data)
	if m.log.Len() > maxScrollback {
		s := m.log.String()
		s = s[len(s)-maxScrollback/2:]
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		m.log.Reset()
		m.log.WriteString(s)
	}
	if !m.ready {
		return
	}
	follow := m.view.AtBottom()
	m.view.SetContent(m.log.String())
	if follow {
		m.view.GotoBottom()
	}
}

func (m *consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	if !m.ready {
		return "Waiting for terminal size...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("ECDEBUG - CONSOLE " + m.dev.ID()))
	s.WriteString("  ")
	s.WriteString(m.healthLine())
	s.WriteString("\n")
	s.WriteString(m.view.View())
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("q: quit | s: suspend/resume | p: forced drain | arrows/pgup/pgdn: scroll"))
	if m.note != "" {
		s.WriteString(headerStyle.Render(" | " + m.note))
	}
	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("console stopped: %v", m.err)))
	}
	return s.String()
}

func (m *consoleModel) healthLine() string {
	st := m.status
	health := status.HealthName(st.Health)

	var label string
	switch st.Health {
	case status.HealthOK:
		label = okStyle.Render(health)
	case status.HealthError:
		label = errorStyle.Render(fmt.Sprintf("%s %d (%ds)", health, st.LastErrorCode, st.SecondsInError))
	default:
		label = warningStyle.Render(health)
	}

	if c := st.Console; c != nil {
		return label + headerStyle.Render(fmt.Sprintf("  buffered %d/%d  dropped %d  drains %d",
			c.Buffered, c.Capacity, c.Dropped, c.Drains))
	}
	return label
}
