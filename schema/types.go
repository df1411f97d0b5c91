package schema

import (
	"fmt"
	"strings"
)

// TabID identifies an open document tab.
type TabID string

// Role identifies the job a mounted view slot performs.
type Role string

const (
	// RolePrimary is the principal editing pane.
	RolePrimary Role = "primary"
	// RoleSecondary is the second pane in split view.
	RoleSecondary Role = "secondary"
	// RoleDiffLeft is the original (left) pane in diff view.
	RoleDiffLeft Role = "diff-left"
	// RoleDiffRight is the modified (right) pane in diff view.
	RoleDiffRight Role = "diff-right"
)

// Roles lists every slot role in mount order.
var Roles = []Role{RolePrimary, RoleSecondary, RoleDiffLeft, RoleDiffRight}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePrimary, RoleSecondary, RoleDiffLeft, RoleDiffRight:
		return true
	default:
		return false
	}
}

// ParseRole validates and normalizes a role name.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
	return role, nil
}

// Mode is the view mode of the editor area.
type Mode string

const (
	// ModeNone shows the primary pane only.
	ModeNone Mode = "none"
	// ModeSplitVertical shows primary and secondary side by side.
	ModeSplitVertical Mode = "split-vertical"
	// ModeSplitHorizontal shows primary above secondary.
	ModeSplitHorizontal Mode = "split-horizontal"
	// ModeDiff shows the diff-left and diff-right panes.
	ModeDiff Mode = "diff"
)

// IsNormal reports whether m is the single-pane mode. The zero value counts as normal.
func (m Mode) IsNormal() bool {
	return m == ModeNone || m == ""
}

// IsSplit reports whether m is one of the split modes.
func (m Mode) IsSplit() bool {
	return m == ModeSplitVertical || m == ModeSplitHorizontal
}

// IsDiff reports whether m is diff mode.
func (m Mode) IsDiff() bool {
	return m == ModeDiff
}

// Roles returns the slot roles mounted while m is current.
func (m Mode) Roles() []Role {
	switch {
	case m.IsSplit():
		return []Role{RolePrimary, RoleSecondary}
	case m.IsDiff():
		return []Role{RoleDiffLeft, RoleDiffRight}
	default:
		return []Role{RolePrimary}
	}
}

// Foreground returns the role that holds the live document while m is current.
func (m Mode) Foreground() Role {
	if m.IsDiff() {
		return RoleDiffRight
	}
	return RolePrimary
}

// ParseMode validates and normalizes a mode name. An empty value maps to ModeNone.
func ParseMode(value string) (Mode, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	switch trimmed {
	case "", "none", "normal":
		return ModeNone, nil
	case "split", "split-vertical", "vertical":
		return ModeSplitVertical, nil
	case "split-horizontal", "horizontal":
		return ModeSplitHorizontal, nil
	case "diff":
		return ModeDiff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

// UpdateContentOptions tunes a store content write.
type UpdateContentOptions struct {
	// SkipHistory keeps the write out of the tab's undo-snapshot list.
	SkipHistory bool
}
