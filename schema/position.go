package schema

import "fmt"

// Position is a 1-based caret location.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// IsZero reports whether p is unset.
func (p Position) IsZero() bool {
	return p.Line == 0 && p.Column == 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// DefaultPosition is where a freshly attached buffer places the caret.
var DefaultPosition = Position{Line: 1, Column: 1}

// Selection is a 1-based range. Start is the anchor and End the active end,
// so a selection made backwards has End before Start.
type Selection struct {
	StartLine   int `json:"start_line" yaml:"start_line"`
	StartColumn int `json:"start_column" yaml:"start_column"`
	EndLine     int `json:"end_line" yaml:"end_line"`
	EndColumn   int `json:"end_column" yaml:"end_column"`
}

// SelectionFrom builds a selection from anchor and active positions.
func SelectionFrom(anchor, active Position) Selection {
	return Selection{
		StartLine:   anchor.Line,
		StartColumn: anchor.Column,
		EndLine:     active.Line,
		EndColumn:   active.Column,
	}
}

// CollapsedAt returns an empty selection at pos.
func CollapsedAt(pos Position) Selection {
	return SelectionFrom(pos, pos)
}

// Start returns the anchor position.
func (s Selection) Start() Position {
	return Position{Line: s.StartLine, Column: s.StartColumn}
}

// End returns the active position, which is where the caret sits.
func (s Selection) End() Position {
	return Position{Line: s.EndLine, Column: s.EndColumn}
}

// IsCollapsed reports whether the selection covers no text.
func (s Selection) IsCollapsed() bool {
	return s.Start() == s.End()
}

// Ordered returns the selection bounds in document order.
func (s Selection) Ordered() (Position, Position) {
	start, end := s.Start(), s.End()
	if end.Before(start) {
		return end, start
	}
	return start, end
}

func (s Selection) String() string {
	return fmt.Sprintf("%s-%s", s.Start(), s.End())
}

// NormalizeSelection returns nil for a missing or collapsed selection and a copy otherwise.
// Older records stored collapsed selections; those are treated as absent.
func NormalizeSelection(sel *Selection) *Selection {
	if sel == nil || sel.IsCollapsed() {
		return nil
	}
	out := *sel
	return &out
}
