package core

import (
	"fmt"
	"strings"
)

// KeyChord is a key press with modifiers. Mod is the platform command key.
type KeyChord struct {
	Key   string
	Mod   bool
	Shift bool
	Alt   bool
}

// ParseKeyChord parses chords such as "mod+shift+z".
func ParseKeyChord(value string) (KeyChord, error) {
	var chord KeyChord
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i == len(parts)-1 {
			if part == "" {
				return KeyChord{}, fmt.Errorf("key chord %q has no key", value)
			}
			chord.Key = part
			break
		}
		switch part {
		case "mod", "ctrl", "cmd", "meta":
			chord.Mod = true
		case "shift":
			chord.Shift = true
		case "alt", "option":
			chord.Alt = true
		default:
			return KeyChord{}, fmt.Errorf("key chord %q has unknown modifier %q", value, part)
		}
	}
	return chord, nil
}

func (k KeyChord) String() string {
	var b strings.Builder
	if k.Mod {
		b.WriteString("mod+")
	}
	if k.Alt {
		b.WriteString("alt+")
	}
	if k.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(k.Key)
	return b.String()
}

// isUndoChord matches Mod+Z.
func (k KeyChord) isUndoChord() bool {
	return k.Mod && !k.Shift && !k.Alt && strings.EqualFold(k.Key, "z")
}

// isRedoChord matches Mod+Shift+Z and Mod+Y.
func (k KeyChord) isRedoChord() bool {
	if !k.Mod || k.Alt {
		return false
	}
	if strings.EqualFold(k.Key, "z") {
		return k.Shift
	}
	return strings.EqualFold(k.Key, "y") && !k.Shift
}
