// Package script replays YAML-described editing sessions against a
// session on the manual loop. A script is a list of single-key steps:
//
//	steps:
//	  - open: {id: a, content: "hello world"}
//	  - start:
//	  - move: "1:12"
//	  - type: "!"
//	  - wait: 300ms
//	  - expect: {tab: a, content: "hello world!", dirty: true}
package script

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"pkt.systems/mdpane/internal/appconfig"
	"pkt.systems/mdpane/schema"
)

// ErrExpectation marks a failed expect step.
var ErrExpectation = errors.New("expectation failed")

var knownOps = map[string]struct{}{
	"open": {}, "start": {}, "mount": {}, "unmount": {}, "type": {}, "move": {},
	"select": {}, "key": {}, "focus": {}, "layout": {}, "mode": {}, "wait": {},
	"frame": {}, "undo": {}, "redo": {}, "switch": {}, "close": {}, "external": {},
	"revert": {}, "diff_base": {}, "expect": {},
}

// Script is a parsed replay script.
type Script struct {
	Name string `yaml:"name"`
	// Ready makes surfaces laid out on creation. Defaults to true.
	Ready  *bool                  `yaml:"ready"`
	Editor appconfig.EditorConfig `yaml:"editor"`
	Steps  []Step                 `yaml:"steps"`
}

// Step is one operation with its raw arguments.
type Step struct {
	Op   string
	Line int
	args yaml.Node
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: a step needs exactly one operation", node.Line)
	}
	op := node.Content[0].Value
	if _, ok := knownOps[op]; !ok {
		return fmt.Errorf("line %d: unknown operation %q", node.Line, op)
	}
	s.Op = op
	s.Line = node.Line
	s.args = *node.Content[1]
	return nil
}

// Args holds the union of step arguments. A scalar argument lands in Value.
type Args struct {
	Value    string       `yaml:"-"`
	Role     schema.Role  `yaml:"role"`
	Tab      schema.TabID `yaml:"tab"`
	ID       schema.TabID `yaml:"id"`
	Text     string       `yaml:"text"`
	Content  string       `yaml:"content"`
	Path     string       `yaml:"path"`
	Language string       `yaml:"language"`
	To       string       `yaml:"to"`
	Anchor   string       `yaml:"anchor"`
	Active   string       `yaml:"active"`
	Chord    string       `yaml:"chord"`
	Baseline bool         `yaml:"baseline"`
}

// Args decodes the step arguments.
func (s Step) Args() (Args, error) {
	var out Args
	switch s.args.Kind {
	case 0:
	case yaml.ScalarNode:
		if s.args.Tag != "!!null" {
			out.Value = s.args.Value
		}
	case yaml.MappingNode:
		if err := s.args.Decode(&out); err != nil {
			return Args{}, fmt.Errorf("line %d: %w", s.Line, err)
		}
	default:
		return Args{}, fmt.Errorf("line %d: %s takes a scalar or a mapping", s.Line, s.Op)
	}
	return out, nil
}

// Decode decodes the step arguments into v.
func (s Step) Decode(v any) error {
	if err := s.args.Decode(v); err != nil {
		return fmt.Errorf("line %d: %w", s.Line, err)
	}
	return nil
}

// Expect lists assertions. Unset fields are not checked.
type Expect struct {
	Tab           schema.TabID  `yaml:"tab"`
	Role          schema.Role   `yaml:"role"`
	Content       *string       `yaml:"content"`
	Saved         *string       `yaml:"saved"`
	Dirty         *bool         `yaml:"dirty"`
	Cursor        *string       `yaml:"cursor"`
	Selection     *string       `yaml:"selection"`
	UndoDepth     *int          `yaml:"undo_depth"`
	Mode          *string       `yaml:"mode"`
	Active        *schema.Role  `yaml:"active"`
	Mounted       []schema.Role `yaml:"mounted"`
	Buffer        *string       `yaml:"buffer"`
	SurfaceCursor *string       `yaml:"surface_cursor"`
	Status        *string       `yaml:"status"`
	Lexer         *string       `yaml:"lexer"`
	Pending       *bool         `yaml:"pending"`
}

// Parse parses a script.
func Parse(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return Script{}, errors.New("parse script: no steps")
	}
	return script, nil
}

// Load reads and parses the script at path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	script, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	if script.Name == "" {
		script.Name = path
	}
	return script, nil
}

// ParsePosition parses "line:column".
func ParsePosition(value string) (schema.Position, error) {
	line, column, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return schema.Position{}, fmt.Errorf("position %q: want line:column", value)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return schema.Position{}, fmt.Errorf("position %q: %w", value, err)
	}
	c, err := strconv.Atoi(column)
	if err != nil {
		return schema.Position{}, fmt.Errorf("position %q: %w", value, err)
	}
	if l < 1 || c < 1 {
		return schema.Position{}, fmt.Errorf("position %q: %w", value, schema.ErrPositionOutOfRange)
	}
	return schema.Position{Line: l, Column: c}, nil
}

// ParseSelection parses "anchor-active", e.g. "1:2-2:1".
func ParseSelection(value string) (schema.Selection, error) {
	anchor, active, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return schema.Selection{}, fmt.Errorf("selection %q: want line:col-line:col", value)
	}
	a, err := ParsePosition(anchor)
	if err != nil {
		return schema.Selection{}, err
	}
	b, err := ParsePosition(active)
	if err != nil {
		return schema.Selection{}, err
	}
	return schema.SelectionFrom(a, b), nil
}
