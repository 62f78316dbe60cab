package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"para/internal/conflict"
	"para/internal/events"
	"para/internal/integrate"
	"para/internal/state"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	stepRunningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	stepConflictStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	stepFailedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	cardLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cardValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// Key bindings
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// watchSnapshot is one refresh of everything the view shows.
type watchSnapshot struct {
	st         *state.IntegrationState
	unresolved []string
	recent     []events.Event
	err        error
}

type watchModel struct {
	mgr         *integrate.Manager
	ev          *events.Logger
	snap        watchSnapshot
	width       int
	height      int
	lastRefresh time.Time
	quitting    bool
}

// Messages
type tickMsg time.Time
type snapshotMsg watchSnapshot

// Commands
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadSnapshotCmd(mgr *integrate.Manager, ev *events.Logger) tea.Cmd {
	return func() tea.Msg {
		snap := watchSnapshot{}
		st, err := mgr.Store().Load()
		if err != nil {
			snap.err = err
			return snapshotMsg(snap)
		}
		snap.st = st

		if st != nil && st.Step.Kind == state.StepConflictsDetected {
			if files, err := conflict.Detect(mgr.Repo()); err == nil {
				snap.unresolved = files
			}
		}
		if recent, err := ev.Recent(5); err == nil {
			snap.recent = recent
		}
		return snapshotMsg(snap)
	}
}

func newWatchModel(mgr *integrate.Manager, ev *events.Logger) watchModel {
	return watchModel{
		mgr:         mgr,
		ev:          ev,
		lastRefresh: time.Now(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(loadSnapshotCmd(m.mgr, m.ev), tickCmd())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Refresh):
			return m, loadSnapshotCmd(m.mgr, m.ev)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.lastRefresh = time.Time(msg)
		return m, tea.Batch(loadSnapshotCmd(m.mgr, m.ev), tickCmd())

	case snapshotMsg:
		m.snap = watchSnapshot(msg)
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var s string
	s += titleStyle.Render("para watch") + " "
	s += helpStyle.Render(m.lastRefresh.Format("15:04:05")) + "\n\n"

	switch {
	case m.snap.err != nil:
		s += stepFailedStyle.Render(fmt.Sprintf("state unreadable: %v", m.snap.err)) + "\n"
		s += helpStyle.Render("\ninspect the state file or run: para clean")

	case m.snap.st == nil:
		s += normalStyle.Render("No integration in progress.\n")
		s += helpStyle.Render("\nStart one with: para integrate <session>")

	default:
		s += m.renderIntegration(m.snap.st)
	}

	if len(m.snap.recent) > 0 {
		s += "\n\n" + helpStyle.Render("recent events") + "\n"
		for _, e := range m.snap.recent {
			s += helpStyle.Render(fmt.Sprintf("  %s  %-22s %s", formatEventTime(e.Time), e.Type, eventDetail(e))) + "\n"
		}
	}

	s += "\n"
	s += helpStyle.Render("r  refresh") + "\n"
	s += helpStyle.Render("q  quit")
	return s
}

// renderIntegration draws the active integration card and the next-step
// hint matching its step.
func (m watchModel) renderIntegration(st *state.IntegrationState) string {
	var card string
	card += cardTitleStyle.Render(st.SessionID) + "\n"
	card += cardLabelStyle.Render("Feature:  ") + cardValueStyle.Render(st.FeatureBranch) + "\n"
	card += cardLabelStyle.Render("Target:   ") + cardValueStyle.Render(st.BaseBranch) + "\n"
	card += cardLabelStyle.Render("Strategy: ") + cardValueStyle.Render(strings.ToLower(string(st.Strategy))) + "\n"
	card += cardLabelStyle.Render("Step:     ") + m.renderStep(st.Step) + "\n"
	card += cardLabelStyle.Render("Started:  ") + cardValueStyle.Render(formatWhen(st.CreatedAt))

	s := cardStyle.Render(card)

	switch st.Step.Kind {
	case state.StepConflictsDetected:
		s += "\n\n"
		if len(m.snap.unresolved) == 0 {
			s += stepRunningStyle.Render("all conflicts staged") + "\n"
			s += helpStyle.Render("finish with: para continue")
		} else {
			for _, f := range m.snap.unresolved {
				s += stepConflictStyle.Render("  ✗ "+f) + "\n"
			}
			for _, f := range resolvedFiles(st.ConflictFiles, m.snap.unresolved) {
				s += stepRunningStyle.Render("  ✓ "+f) + "\n"
			}
			s += helpStyle.Render("\nresolve and stage, then: para continue")
		}
	case state.StepFailed:
		s += "\n\n" + stepFailedStyle.Render("error: "+st.Step.Error) + "\n"
		s += helpStyle.Render("roll back with: para abort")
	}
	return s
}

func (m watchModel) renderStep(step state.Step) string {
	switch step.Kind {
	case state.StepConflictsDetected:
		return stepConflictStyle.Render(step.String())
	case state.StepFailed:
		return stepFailedStyle.Render(string(step.Kind))
	default:
		return stepRunningStyle.Render(string(step.Kind))
	}
}

// resolvedFiles returns the originally conflicted paths no longer unmerged.
func resolvedFiles(original, unresolved []string) []string {
	remaining := make(map[string]bool, len(unresolved))
	for _, f := range unresolved {
		remaining[f] = true
	}
	var resolved []string
	for _, f := range original {
		if !remaining[f] {
			resolved = append(resolved, f)
		}
	}
	return resolved
}

func runWatchTUI(mgr *integrate.Manager, ev *events.Logger) error {
	p := tea.NewProgram(newWatchModel(mgr, ev), tea.WithAltScreen())

	_, err := p.Run()
	return err
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the active integration in a live view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, cfg, err := newManager()
			if err != nil {
				return err
			}
			ev := events.NewLogger(cfg.EventsPath(mgr.Repo().Root()))
			return runWatchTUI(mgr, ev)
		},
	}
}
