package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func choices() []ProfileChoice {
	return []ProfileChoice{
		{Name: "live", URL: "sftp://example.com/var/www", Default: true, Stamps: 12},
		{Name: "staging", URL: "file:///srv/staging"},
	}
}

func TestPickerPreselectsAndMoves(t *testing.T) {
	m := newPicker(choices(), "Upload to", "staging")
	if m.list.Index() != 1 {
		t.Fatalf("preselected index = %d", m.list.Index())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.choice != "live" {
		t.Fatalf("choice = %q", m.choice)
	}
	if !strings.Contains(m.View(), "live") {
		t.Errorf("view = %q", m.View())
	}
}

func TestPickerCancel(t *testing.T) {
	m := newPicker(choices(), "Upload to", "")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !m.cancelled || m.choice != "" {
		t.Fatalf("cancelled = %v, choice = %q", m.cancelled, m.choice)
	}
}

func TestPickProfileSingleChoice(t *testing.T) {
	got, err := PickProfile(choices()[:1], "Upload to", "")
	if err != nil || got != "live" {
		t.Fatalf("PickProfile = %q, %v", got, err)
	}
	if _, err := PickProfile(nil, "Upload to", ""); err == nil {
		t.Fatalf("expected error without profiles")
	}
}

func TestConfirmToken(t *testing.T) {
	ok, err := confirmToken(strings.NewReader("nope\nAB12CD\n"), "Forget stamps", "AB12CD", 3)
	if err != nil || !ok {
		t.Fatalf("confirmToken = %v, %v", ok, err)
	}
	ok, err = confirmToken(strings.NewReader("nope\n"), "Forget stamps", "AB12CD", 3)
	if err != nil || ok {
		t.Fatalf("confirmToken without token = %v, %v", ok, err)
	}
}
