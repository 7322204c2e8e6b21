package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"make-upload/internal/project"
	"make-upload/internal/selection"
)

var (
	checkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	plainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	folderStyle  = lipgloss.NewStyle().Bold(true)
)

func marker(s selection.CheckState) string {
	switch s {
	case selection.Checked:
		return checkedStyle.Render("[x]")
	case selection.PartiallyChecked:
		return partialStyle.Render("[-]")
	}
	return plainStyle.Render("[ ]")
}

// renderTree writes the visible part of m below its top node. Unchecked
// branches are skipped unless all is set. A non-empty note is appended to
// the line of its node. It returns the number of checked leaves.
func renderTree(w io.Writer, m *selection.Model, all bool, note func(*project.Node) string) int {
	checked := 0
	var walk func(n *project.Node, depth int)
	walk = func(n *project.Node, depth int) {
		st := m.EffectiveCheckState(n)
		if !all && st == selection.Unchecked {
			return
		}
		name := n.Name()
		if n.IsFolder() {
			name = folderStyle.Render(name + "/")
		}
		if note != nil {
			if s := note(n); s != "" {
				name += " " + plainStyle.Render("("+s+")")
			}
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), marker(st), name)
		if m.IsLeaf(n) {
			if st == selection.Checked {
				checked++
			}
			return
		}
		for _, c := range m.VisibleChildren(n) {
			walk(c, depth+1)
		}
	}
	walk(m.Top(), 0)
	return checked
}
