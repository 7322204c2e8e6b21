package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

var (
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
	defaultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b"))
)

// compactDelegate renders one line per profile: name, default marker, url.
type compactDelegate struct{ list.DefaultDelegate }

func (d compactDelegate) Height() int  { return 1 }
func (d compactDelegate) Spacing() int { return 0 }

func (d compactDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it, ok := listItem.(ProfileChoice)
	if !ok {
		return
	}
	prefix, style := "  ", normalStyle
	if index == m.Index() {
		prefix, style = "> ", selectedStyle
	}
	line := style.Render(prefix + it.Name)
	if it.Default {
		line += " " + defaultStyle.Render("(default)")
	}
	line += "  " + dimStyle.Render(fmt.Sprintf("%s  %d stamps", it.URL, it.Stamps))
	_, _ = io.WriteString(w, line)
}

func newProfileList(choices []ProfileChoice, title string, preselect string) list.Model {
	items := make([]list.Item, 0, len(choices))
	cursor := 0
	for i, c := range choices {
		items = append(items, c)
		if c.Name == preselect {
			cursor = i
		}
	}

	l := list.New(items, compactDelegate{list.NewDefaultDelegate()}, 72, len(items)+4)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.Select(cursor)
	return l
}
