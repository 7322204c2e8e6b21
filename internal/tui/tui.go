// Package tui holds the interactive pieces of the command line: the profile
// picker and the confirmation prompt.
package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user leaves the picker without choosing.
var ErrCancelled = errors.New("cancelled")

// ProfileChoice is one row of the picker.
type ProfileChoice struct {
	Name    string
	URL     string
	Default bool
	Stamps  int
}

func (c ProfileChoice) Title() string       { return c.Name }
func (c ProfileChoice) Description() string { return c.URL }
func (c ProfileChoice) FilterValue() string { return c.Name }

type pickerModel struct {
	list      list.Model
	choice    string
	cancelled bool
}

func newPicker(choices []ProfileChoice, title, preselect string) *pickerModel {
	return &pickerModel{list: newProfileList(choices, title, preselect)}
}

func (m *pickerModel) Init() tea.Cmd { return nil }

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if itm, ok := m.list.SelectedItem().(ProfileChoice); ok {
				m.choice = itm.Name
			}
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "up", "k":
			m.list.CursorUp()
			return m, nil
		case "down", "j":
			m.list.CursorDown()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *pickerModel) View() string {
	if m.choice != "" {
		return fmt.Sprintf("Profile: %s\n", m.choice)
	}
	if m.cancelled {
		return ""
	}
	return m.list.View()
}

// PickProfile blocks until the user picks a profile. A single choice is
// returned without asking.
func PickProfile(choices []ProfileChoice, title, preselect string) (string, error) {
	switch len(choices) {
	case 0:
		return "", errors.New("no profiles configured")
	case 1:
		return choices[0].Name, nil
	}
	m := newPicker(choices, title, preselect)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return "", err
	}
	if m.cancelled || m.choice == "" {
		return "", ErrCancelled
	}
	return m.choice, nil
}
