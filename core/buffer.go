package core

import (
	"strings"
	"unicode/utf8"

	"pkt.systems/mdpane/schema"
)

// defaultUndoLimit caps the native undo chain of a buffer.
const defaultUndoLimit = 1000

// ContentChange describes one mutation of a buffer.
type ContentChange struct {
	Version uint64
	// IsFlush is set when the whole buffer was reset and history cleared.
	IsFlush bool
	IsUndo  bool
	IsRedo  bool
}

// Buffer is the live edit buffer of one tab. It carries the text, a linear
// undo/redo history grouped by undo stops, and a disposed flag.
// Only the BufferCache creates and disposes buffers; slots borrow them.
type Buffer struct {
	tabID     schema.TabID
	text      string
	language  string
	lexer     string
	version   uint64
	undo      []string
	redo      []string
	groupOpen bool
	undoLimit int
	disposed  bool
	listeners listenerSet[ContentChange]
}

func newEditBuffer(tabID schema.TabID, content, language string) *Buffer {
	return &Buffer{
		tabID:     tabID,
		text:      content,
		language:  schema.NormalizeLanguage(language),
		lexer:     resolveLexer(language),
		undoLimit: defaultUndoLimit,
	}
}

// TabID returns the tab the buffer belongs to.
func (b *Buffer) TabID() schema.TabID {
	if b == nil {
		return ""
	}
	return b.tabID
}

// Text returns the current text. A disposed buffer keeps its last text.
func (b *Buffer) Text() string {
	if b == nil {
		return ""
	}
	return b.text
}

// Language returns the normalized language tag.
func (b *Buffer) Language() string {
	if b == nil {
		return ""
	}
	return b.language
}

// Lexer returns the highlighter lexer name resolved from the language tag.
func (b *Buffer) Lexer() string {
	if b == nil {
		return ""
	}
	return b.lexer
}

// Version increments on every content change.
func (b *Buffer) Version() uint64 {
	if b == nil {
		return 0
	}
	return b.version
}

// IsDisposed reports whether the buffer was disposed.
func (b *Buffer) IsDisposed() bool {
	return b == nil || b.disposed
}

// Dispose marks the buffer dead and drops its listeners.
func (b *Buffer) Dispose() {
	if b == nil || b.disposed {
		return
	}
	b.disposed = true
	b.listeners.clear()
}

// OnDidChangeContent registers fn for content changes. The returned func removes it.
func (b *Buffer) OnDidChangeContent(fn func(ContentChange)) func() {
	if b == nil || b.disposed {
		return func() {}
	}
	return b.listeners.add(fn)
}

// SetValue replaces the text and clears the undo and redo history.
func (b *Buffer) SetValue(text string) error {
	if b.IsDisposed() {
		return schema.ErrBufferDisposed
	}
	b.text = text
	b.undo = nil
	b.redo = nil
	b.groupOpen = false
	b.version++
	b.emit(ContentChange{Version: b.version, IsFlush: true})
	return nil
}

// PushStackElement closes the current undo group so the next edit starts a new one.
func (b *Buffer) PushStackElement() {
	if b.IsDisposed() {
		return
	}
	b.groupOpen = false
}

// Replace swaps the text between from and to for text. The edit joins the
// open undo group or opens a new one, and clears the redo history.
func (b *Buffer) Replace(from, to schema.Position, text string) error {
	if b.IsDisposed() {
		return schema.ErrBufferDisposed
	}
	start, err := b.offset(from)
	if err != nil {
		return err
	}
	end, err := b.offset(to)
	if err != nil {
		return err
	}
	if end < start {
		start, end = end, start
	}
	next := b.text[:start] + text + b.text[end:]
	if next == b.text {
		return nil
	}
	if !b.groupOpen {
		b.undo = append(b.undo, b.text)
		if len(b.undo) > b.undoLimit {
			b.undo = b.undo[len(b.undo)-b.undoLimit:]
		}
		b.groupOpen = true
	}
	b.redo = nil
	b.text = next
	b.version++
	b.emit(ContentChange{Version: b.version})
	return nil
}

// ReplaceAll replaces the full extent of the buffer as one range edit,
// so the change stays on the undo stack.
func (b *Buffer) ReplaceAll(text string) error {
	return b.Replace(schema.DefaultPosition, b.EndPosition(), text)
}

// Insert inserts text at pos.
func (b *Buffer) Insert(pos schema.Position, text string) error {
	return b.Replace(pos, pos, text)
}

// CanUndo reports whether Undo would change the text.
func (b *Buffer) CanUndo() bool {
	return !b.IsDisposed() && len(b.undo) > 0
}

// CanRedo reports whether Redo would change the text.
func (b *Buffer) CanRedo() bool {
	return !b.IsDisposed() && len(b.redo) > 0
}

// Undo steps back one undo group. It reports false when there is no history.
func (b *Buffer) Undo() bool {
	if !b.CanUndo() {
		return false
	}
	b.groupOpen = false
	last := len(b.undo) - 1
	prev := b.undo[last]
	b.undo = b.undo[:last]
	b.redo = append(b.redo, b.text)
	b.text = prev
	b.version++
	b.emit(ContentChange{Version: b.version, IsUndo: true})
	return true
}

// Redo re-applies the last undone group.
func (b *Buffer) Redo() bool {
	if !b.CanRedo() {
		return false
	}
	b.groupOpen = false
	last := len(b.redo) - 1
	next := b.redo[last]
	b.redo = b.redo[:last]
	b.undo = append(b.undo, b.text)
	b.text = next
	b.version++
	b.emit(ContentChange{Version: b.version, IsRedo: true})
	return true
}

// LineCount returns the number of lines; an empty buffer has one.
func (b *Buffer) LineCount() int {
	if b == nil {
		return 1
	}
	return strings.Count(b.text, "\n") + 1
}

// LineLength returns the number of characters on line, or -1 when out of range.
func (b *Buffer) LineLength(line int) int {
	text, ok := b.lineText(line)
	if !ok {
		return -1
	}
	return utf8.RuneCountInString(text)
}

// EndPosition returns the position after the last character.
func (b *Buffer) EndPosition() schema.Position {
	line := b.LineCount()
	return schema.Position{Line: line, Column: b.LineLength(line) + 1}
}

// ValidPosition reports whether pos addresses a caret location in the text.
func (b *Buffer) ValidPosition(pos schema.Position) bool {
	_, err := b.offset(pos)
	return err == nil
}

// ClampPosition moves pos to the nearest valid caret location.
func (b *Buffer) ClampPosition(pos schema.Position) schema.Position {
	lines := b.LineCount()
	if pos.Line < 1 {
		return schema.DefaultPosition
	}
	if pos.Line > lines {
		return b.EndPosition()
	}
	if pos.Column < 1 {
		pos.Column = 1
	}
	if max := b.LineLength(pos.Line) + 1; pos.Column > max {
		pos.Column = max
	}
	return pos
}

// CharsBetween counts the characters between two valid positions.
func (b *Buffer) CharsBetween(a, c schema.Position) int {
	start, err := b.offset(a)
	if err != nil {
		return 0
	}
	end, err := b.offset(c)
	if err != nil {
		return 0
	}
	if end < start {
		start, end = end, start
	}
	return utf8.RuneCountInString(b.text[start:end])
}

// PositionAfter returns the caret position after inserting text at pos.
func PositionAfter(pos schema.Position, text string) schema.Position {
	lines := strings.Count(text, "\n")
	if lines == 0 {
		return schema.Position{Line: pos.Line, Column: pos.Column + utf8.RuneCountInString(text)}
	}
	tail := text[strings.LastIndexByte(text, '\n')+1:]
	return schema.Position{Line: pos.Line + lines, Column: utf8.RuneCountInString(tail) + 1}
}

func (b *Buffer) lineText(line int) (string, bool) {
	if b == nil || line < 1 {
		return "", false
	}
	start := 0
	for current := 1; current < line; current++ {
		nl := strings.IndexByte(b.text[start:], '\n')
		if nl < 0 {
			return "", false
		}
		start += nl + 1
	}
	end := strings.IndexByte(b.text[start:], '\n')
	if end < 0 {
		return b.text[start:], true
	}
	return b.text[start : start+end], true
}

// offset converts a position to a byte offset into the text.
func (b *Buffer) offset(pos schema.Position) (int, error) {
	if b == nil || pos.Line < 1 || pos.Column < 1 {
		return 0, schema.ErrPositionOutOfRange
	}
	start := 0
	for current := 1; current < pos.Line; current++ {
		nl := strings.IndexByte(b.text[start:], '\n')
		if nl < 0 {
			return 0, schema.ErrPositionOutOfRange
		}
		start += nl + 1
	}
	lineEnd := len(b.text)
	if nl := strings.IndexByte(b.text[start:], '\n'); nl >= 0 {
		lineEnd = start + nl
	}
	offset := start
	for col := 1; col < pos.Column; col++ {
		if offset >= lineEnd {
			return 0, schema.ErrPositionOutOfRange
		}
		_, size := utf8.DecodeRuneInString(b.text[offset:lineEnd])
		offset += size
	}
	return offset, nil
}

func (b *Buffer) emit(change ContentChange) {
	b.listeners.emit(change)
}
