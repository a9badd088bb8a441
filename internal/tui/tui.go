// Package tui provides the Bubble Tea account picker.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// AccountItem represents one account in the picker
type AccountItem struct {
	alias    string
	position int
}

func (i AccountItem) Title() string       { return i.alias }
func (i AccountItem) Description() string { return fmt.Sprintf("Account #%d", i.position+1) }
func (i AccountItem) FilterValue() string { return i.alias }

// Model is the Bubble Tea model of the picker
type Model struct {
	list      list.Model
	count     int
	chosen    int
	done      bool
	cancelled bool
}

// NewModel creates a picker over the given aliases
func NewModel(aliases []string) Model {
	items := make([]list.Item, 0, len(aliases))
	for i, alias := range aliases {
		items = append(items, AccountItem{alias: alias, position: i})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select an account"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	return Model{list: l, count: len(aliases), chosen: -1}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit

		case "enter":
			if m.count == 0 {
				m.cancelled = true
				return m, tea.Quit
			}
			m.chosen = m.list.Index()
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(KeyHints(
		KeyHint("↑/↓", "move"),
		KeyHint("enter", "select"),
		KeyHint("esc", "cancel"),
	)))
	return b.String()
}

// Selected returns the chosen position, or false when the picker was
// cancelled.
func (m Model) Selected() (int, bool) {
	if !m.done || m.chosen < 0 || m.chosen >= m.count {
		return 0, false
	}
	return m.chosen, true
}

// Pick shows the picker and returns the chosen position.
func Pick(aliases []string, in io.Reader, out io.Writer) (int, bool, error) {
	opts := []tea.ProgramOption{}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(NewModel(aliases), opts...).Run()
	if err != nil {
		return 0, false, fmt.Errorf("failed to run account picker: %w", err)
	}
	idx, ok := final.(Model).Selected()
	return idx, ok, nil
}
