// Package selection holds the tri-state upload selection of a project.
//
// A file defaults to Checked when it was never uploaded under the active
// profile or was modified after its last upload. An empty folder defaults to
// Checked when it was never uploaded. A non-empty folder has no state of its
// own: it aggregates its visible children. User choices are kept as a sparse
// override map keyed by node identity and only ever stored on leaves.
//
// A Model is not safe for concurrent use; drive it from one goroutine.
package selection

import (
	"errors"
	"sort"

	"make-upload/internal/project"
)

var (
	ErrPartialState = errors.New("partially checked cannot be set directly")
	ErrNotVisible   = errors.New("node is outside the selection scope")
)

// Model is a filtered, rooted, checkable projection of a project tree.
type Model struct {
	tree      *project.Tree
	record    Record
	scope     *project.Node
	overrides map[*project.Node]CheckState

	onReset   []*observer[func()]
	onChanged []*observer[func(*project.Node)]
}

// observer is one registered callback. Callbacks may unsubscribe or drive
// the model again while being notified.
type observer[F any] struct {
	fn   F
	dead bool
}

// NewModel returns a model over the whole tree with no active record.
func NewModel(tree *project.Tree) *Model {
	return &Model{
		tree:      tree,
		overrides: map[*project.Node]CheckState{},
	}
}

func (m *Model) Tree() *project.Tree { return m.tree }

// Record is the active upload record, nil when none is configured.
func (m *Model) Record() Record { return m.record }

// RootScope is the subtree boundary, nil for the whole project.
func (m *Model) RootScope() *project.Node { return m.scope }

// Top is the node uploads start from: the scope, or the project root.
func (m *Model) Top() *project.Node {
	if m.scope != nil {
		return m.scope
	}
	return m.tree.Root()
}

// Overrides is the number of explicit user choices held.
func (m *Model) Overrides() int { return len(m.overrides) }

// OnReset registers fn to run whenever every derived state must be
// recomputed. The returned func unsubscribes.
func (m *Model) OnReset(fn func()) func() {
	o := &observer[func()]{fn: fn}
	m.onReset = append(m.onReset, o)
	return func() { m.onReset = unsubscribe(m.onReset, o) }
}

// OnChanged registers fn to run when a node's state, and with it the
// aggregated state of its ancestors, may have changed.
func (m *Model) OnChanged(fn func(n *project.Node)) func() {
	o := &observer[func(*project.Node)]{fn: fn}
	m.onChanged = append(m.onChanged, o)
	return func() { m.onChanged = unsubscribe(m.onChanged, o) }
}

// unsubscribe returns a new slice without o, leaving any snapshot being
// notified intact.
func unsubscribe[F any](list []*observer[F], o *observer[F]) []*observer[F] {
	o.dead = true
	out := make([]*observer[F], 0, len(list))
	for _, x := range list {
		if x != o {
			out = append(out, x)
		}
	}
	return out
}

func (m *Model) notifyReset() {
	for _, o := range m.onReset {
		if !o.dead {
			o.fn()
		}
	}
}

func (m *Model) notifyChanged(n *project.Node) {
	for _, o := range m.onChanged {
		if !o.dead {
			o.fn(n)
		}
	}
}

// SetActiveProfile switches the upload record and drops all overrides.
// A nil record means no profile is configured: every leaf defaults to
// Checked since staleness cannot be evaluated.
func (m *Model) SetActiveProfile(r Record) {
	m.record = r
	m.reset()
}

// SetRootScope restricts the model to n's subtree (n's ancestors stay
// visible as the path down to it). A nil or foreign node selects the whole
// project. Overrides are dropped.
func (m *Model) SetRootScope(n *project.Node) {
	if n != nil && !m.tree.Contains(n) {
		n = nil
	}
	m.scope = n
	m.reset()
}

func (m *Model) reset() {
	m.overrides = map[*project.Node]CheckState{}
	m.notifyReset()
}

// Visible reports whether n passes the scope filter.
func (m *Model) Visible(n *project.Node) bool {
	if n == nil || !m.tree.Contains(n) {
		return false
	}
	s := m.scope
	return s == nil || n == s || n.IsAncestorOf(s) || s.IsAncestorOf(n)
}

// VisibleChildren returns n's children that pass the scope filter, in tree
// order.
func (m *Model) VisibleChildren(n *project.Node) []*project.Node {
	kids := n.Children()
	if m.scope == nil || n == m.scope || m.scope.IsAncestorOf(n) {
		return kids
	}
	out := make([]*project.Node, 0, 1)
	for _, c := range kids {
		if m.Visible(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsLeaf reports whether n holds its own state: a file, or a folder without
// visible children.
func (m *Model) IsLeaf(n *project.Node) bool {
	return n.IsFile() || len(m.VisibleChildren(n)) == 0
}

// EffectiveCheckState resolves n's state: the override if any, otherwise
// the default rule. Nodes outside the scope are Unchecked.
func (m *Model) EffectiveCheckState(n *project.Node) CheckState {
	if !m.Visible(n) {
		return Unchecked
	}
	return m.state(n)
}

func (m *Model) state(n *project.Node) CheckState {
	if n.IsFile() {
		return m.fileState(n)
	}
	kids := m.VisibleChildren(n)
	if len(kids) == 0 {
		return m.emptyFolderState(n)
	}
	all, none := true, true
	for _, c := range kids {
		switch m.state(c) {
		case Checked:
			none = false
		case Unchecked:
			all = false
		default:
			return PartiallyChecked
		}
		if !all && !none {
			return PartiallyChecked
		}
	}
	if all {
		return Checked
	}
	return Unchecked
}

func (m *Model) fileState(n *project.Node) CheckState {
	if s, ok := m.overrides[n]; ok {
		return s
	}
	if m.record == nil {
		return Checked
	}
	uploaded, ok := m.record.Lookup(n.RelPath())
	if !ok {
		return Checked
	}
	mod, err := n.ModTime()
	if err != nil {
		// a file that cannot be stat'ed cannot be uploaded either
		return Unchecked
	}
	if mod.After(uploaded) {
		return Checked
	}
	return Unchecked
}

// emptyFolderState has no modification time to compare: a folder once
// uploaded stays Unchecked.
func (m *Model) emptyFolderState(n *project.Node) CheckState {
	if s, ok := m.overrides[n]; ok {
		return s
	}
	if m.record == nil {
		return Checked
	}
	if _, ok := m.record.Lookup(n.RelPath()); ok {
		return Unchecked
	}
	return Checked
}

// SetCheckState records a user choice. On a leaf it is stored directly; on
// a non-empty folder it is applied to every visible leaf below it, so the
// folder's own state keeps deriving from its children.
func (m *Model) SetCheckState(n *project.Node, s CheckState) error {
	if s != Checked && s != Unchecked {
		return ErrPartialState
	}
	if !m.Visible(n) {
		return ErrNotVisible
	}
	if m.IsLeaf(n) {
		m.overrides[n] = s
		m.notifyChanged(n)
		return nil
	}
	m.WalkLeaves(n, func(leaf *project.Node) {
		m.overrides[leaf] = s
		m.notifyChanged(leaf)
	})
	m.notifyChanged(n)
	return nil
}

// CheckAll checks every visible leaf.
func (m *Model) CheckAll() {
	_ = m.SetCheckState(m.Top(), Checked)
}

// CheckOnlyModified drops every override, which by the default rule leaves
// exactly the modified files and never-uploaded empty folders checked.
func (m *Model) CheckOnlyModified() {
	touched := make([]*project.Node, 0, len(m.overrides))
	for n := range m.overrides {
		touched = append(touched, n)
	}
	m.overrides = map[*project.Node]CheckState{}
	sort.Slice(touched, func(i, j int) bool { return touched[i].RelPath() < touched[j].RelPath() })
	for _, n := range touched {
		m.notifyChanged(n)
	}
}

// InvertSelection flips every visible leaf. Non-empty folders follow by
// aggregation.
func (m *Model) InvertSelection() {
	m.WalkLeaves(m.tree.Root(), func(leaf *project.Node) {
		m.overrides[leaf] = m.state(leaf).Invert()
		m.notifyChanged(leaf)
	})
}

// WalkLeaves calls fn for every visible leaf at or below from, depth-first
// in tree order.
func (m *Model) WalkLeaves(from *project.Node, fn func(leaf *project.Node)) {
	if !m.Visible(from) {
		return
	}
	var visit func(n *project.Node)
	visit = func(n *project.Node) {
		kids := m.VisibleChildren(n)
		if n.IsFile() || len(kids) == 0 {
			fn(n)
			return
		}
		for _, c := range kids {
			visit(c)
		}
	}
	visit(from)
}
