package selection

import "time"

// CheckState is the tri-state check value of a tree node.
type CheckState int

const (
	Unchecked CheckState = iota
	PartiallyChecked
	Checked
)

func (s CheckState) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case PartiallyChecked:
		return "partial"
	case Checked:
		return "checked"
	}
	return "invalid"
}

// Invert flips a leaf state. Anything not Unchecked becomes Unchecked.
func (s CheckState) Invert() CheckState {
	if s == Unchecked {
		return Checked
	}
	return Unchecked
}

// Record is the read side of a profile's upload record: the last upload
// time of a project relative path.
type Record interface {
	Lookup(path string) (time.Time, bool)
}
