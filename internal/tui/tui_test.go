package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNewModel(t *testing.T) {
	m := NewModel([]string{"alice", "bob"})

	if m.count != 2 {
		t.Errorf("NewModel() count = %d, want 2", m.count)
	}
	if _, ok := m.Selected(); ok {
		t.Error("Selected() should be false before a choice")
	}
}

func TestModel_SelectSecond(t *testing.T) {
	m := NewModel([]string{"alice", "bob", "carol"})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd == nil {
		t.Error("Update(enter) should return quit command")
	}
	idx, ok := m.Selected()
	if !ok || idx != 1 {
		t.Errorf("Selected() = %d, %v, want 1, true", idx, ok)
	}
}

func TestModel_Cancel(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		m := NewModel([]string{"alice"})
		m, cmd := press(m, key)
		if cmd == nil {
			t.Errorf("Update(%s) should return quit command", key)
		}
		if _, ok := m.Selected(); ok {
			t.Errorf("Update(%s) should cancel", key)
		}
	}
}

func TestModel_EmptyList(t *testing.T) {
	m := NewModel(nil)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})

	if _, ok := m.Selected(); ok {
		t.Error("Selected() on an empty list should be false")
	}
}

func TestModel_SelectionStaysInRange(t *testing.T) {
	m := NewModel([]string{"alice", "bob"})
	for i := 0; i < 5; i++ {
		m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})

	idx, ok := m.Selected()
	if !ok || idx != 1 {
		t.Errorf("Selected() = %d, %v, want last item", idx, ok)
	}
}

func TestModel_View(t *testing.T) {
	m := NewModel([]string{"alice", "bob"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "alice") {
		t.Errorf("View() should list aliases, got %q", view)
	}

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.View() != "" {
		t.Error("View() after cancel should be empty")
	}
}
