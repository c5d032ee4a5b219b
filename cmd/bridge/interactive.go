package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wippyai/scriptbridge"
	"github.com/wippyai/scriptbridge/script"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	ownerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	s        *session
	status   string
	snap     scriptbridge.Snapshot
	input    textinput.Model
	selected int
	frames   int
	running  bool
	creating bool
}

type frameMsg struct{}

type reloadMsg struct {
	name string
}

func newInteractiveModel(s *session) *interactiveModel {
	m := &interactiveModel{s: s}
	m.refresh()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) tick() tea.Cmd {
	interval := m.s.cfg.Sim.FrameInterval
	if interval <= 0 {
		interval = time.Second / 60
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m *interactiveModel) step() {
	if err := m.s.frame(context.Background()); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.frames++
	m.refresh()
}

func (m *interactiveModel) refresh() {
	m.snap = m.s.bridge.Snapshot()
	if m.selected >= len(m.snap.Environments) {
		m.selected = max(0, len(m.snap.Environments)-1)
	}
}

func (m *interactiveModel) selectedOwner() (script.Owner, bool) {
	if m.selected >= len(m.snap.Environments) {
		return script.Owner{}, false
	}
	return m.snap.Environments[m.selected].Owner, true
}

// create parses "<owner> <script>" from the prompt, e.g. "quest:3 intro".
func (m *interactiveModel) create(line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		m.err = fmt.Errorf("expected <owner> <script>, got %q", line)
		return
	}
	owner, err := script.ParseOwner(fields[0])
	if err != nil {
		m.err = err
		return
	}
	if _, err := m.s.bridge.CreateEnvironment(owner, fields[1]); err != nil {
		m.err = err
		return
	}
	m.status = "created " + owner.String()
	m.refresh()
}

func (m *interactiveModel) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.creating = false
			m.create(m.input.Value())
			return m, nil
		case "esc":
			m.creating = false
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.creating {
		switch msg.(type) {
		case frameMsg, reloadMsg:
		default:
			return m.updatePrompt(msg)
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.snap.Environments)-1 {
				m.selected++
			}

		case "n", "right":
			if !m.running {
				m.step()
			}

		case " ":
			m.running = !m.running
			if m.running {
				return m, m.tick()
			}

		case "r":
			if o, ok := m.selectedOwner(); ok {
				if _, err := m.s.bridge.Reload(o); err != nil {
					m.err = err
				} else {
					m.status = "reloaded " + o.String()
				}
				m.refresh()
			}

		case "d":
			if o, ok := m.selectedOwner(); ok {
				if err := m.s.bridge.DestroyEnvironment(o); err != nil {
					m.err = err
				} else {
					m.status = "destroyed " + o.String()
				}
				m.refresh()
			}

		case "s":
			if err := m.s.store(); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("saved %s (%s)", m.s.save.Path(), humanize.Bytes(m.s.saveSize()))
			}

		case "l":
			if err := m.s.restore(); err != nil {
				m.err = err
			} else {
				m.status = "restored " + m.s.save.Path()
			}
			m.refresh()

		case "c":
			ti := textinput.New()
			ti.Placeholder = "quest:1 intro"
			ti.Prompt = "create: "
			ti.Width = 40
			ti.Focus()
			m.input = ti
			m.creating = true
			return m, textinput.Blink

		case "R":
			m.s.reset()
			m.frames = 0
			m.status = "reinitialized"
			m.refresh()
		}

	case frameMsg:
		if !m.running {
			return m, nil
		}
		m.step()
		if m.running {
			return m, m.tick()
		}

	case reloadMsg:
		if n := m.s.reload(msg.name); n > 0 {
			m.status = fmt.Sprintf("%s changed, reloaded %d", msg.name, n)
		}
		m.refresh()
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Script Bridge"))
	b.WriteString(" ")
	state := "paused"
	if m.running {
		state = "running"
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("frame %s  %s", humanize.Comma(int64(m.snap.Frame)), state)))
	b.WriteString("\n\n")

	if len(m.snap.Environments) == 0 {
		b.WriteString("No environments.\n")
	}
	for i, e := range m.snap.Environments {
		line := fmt.Sprintf("%-12s %-14s threads=%d slots=%d faults=%d",
			e.Owner, e.Script, len(e.Threads), len(e.Slots), e.Faults)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + ownerStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if e, ok := m.selectedEnv(); ok {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("%s  loaded %s", e.ID, humanize.Time(e.Created))))
		b.WriteString("\n")
		for _, th := range e.Threads {
			wait := ""
			if th.Waiting {
				wait = " (waiting)"
			}
			b.WriteString(fmt.Sprintf("  thread %d %s%s\n", th.ID, th.Name, wait))
		}
		for _, sl := range e.Slots {
			region := sl.Region
			if region == "" {
				region = "any"
			}
			b.WriteString(fmt.Sprintf("  slot %d %s region=%s\n", sl.Index, sl.Name, region))
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Tokens: %d  Handles: %d  Globals: %d\n",
		len(m.snap.Tokens), len(m.snap.Handles), len(m.snap.Globals)))
	for _, t := range m.snap.Tokens {
		b.WriteString(fmt.Sprintf("  token %d %s entity=%d %s\n", t.ID, t.Owner, t.Entity, t.State))
	}
	for _, k := range m.s.bridge.Globals().Keys() {
		b.WriteString(fmt.Sprintf("  %s = %s\n", k, m.snap.Globals[k]))
	}

	b.WriteString("\n")
	if m.creating {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter create • esc cancel"))
		return b.String()
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(resultStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("n step • space run/pause • ↑/↓ select • c create • r reload • d destroy • s save • l load • R reinit • q quit"))
	return b.String()
}

func (m *interactiveModel) selectedEnv() (script.Info, bool) {
	if m.selected >= len(m.snap.Environments) {
		return script.Info{}, false
	}
	return m.snap.Environments[m.selected], true
}

func runInteractive(s *session, watch bool) error {
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	if watch {
		stop, err := watchScripts(s.cfg.ScriptDir, s.log, func(name string) {
			p.Send(reloadMsg{name: name})
		})
		if err != nil {
			return err
		}
		defer stop()
	}
	_, err := p.Run()
	return err
}
