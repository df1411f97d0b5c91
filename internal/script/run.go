package script

import (
	"context"
	"fmt"
	"slices"
	"time"

	"pkt.systems/mdpane/core"
	"pkt.systems/mdpane/internal/appconfig"
	"pkt.systems/mdpane/internal/tabstore"
	"pkt.systems/mdpane/internal/uiloop"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// Options configures a replay.
type Options struct {
	Logger pslog.Logger
	// Config is the base session config; non-zero editor values in the
	// script override it.
	Config schema.SessionConfig
	// EventSink also receives every session event.
	EventSink core.EventSink
	// OnStep runs after each successful step.
	OnStep func(index int, step Step)
}

// Result summarizes a replay.
type Result struct {
	Name   string
	Steps  int
	Events []schema.SessionEvent
	Tabs   []schema.Tab
	Mode   schema.Mode
	Status core.Status
}

type recorder struct {
	events []schema.SessionEvent
	next   core.EventSink
}

func (r *recorder) OnSessionEvent(event schema.SessionEvent) {
	r.events = append(r.events, event)
	if r.next != nil {
		r.next.OnSessionEvent(event)
	}
}

type replay struct {
	loop     *uiloop.Manual
	store    *tabstore.Store
	surfaces *core.MemorySurfaces
	session  *core.Session
	status   *core.StatusTracker
	log      pslog.Logger
}

// Run replays script on a fresh store, manual loop and in-memory
// surfaces. It stops at the first failing step.
func Run(ctx context.Context, script Script, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	logger = logger.With("script", script.Name)
	cfg := MergeEditor(opts.Config, script.Editor)
	ready := script.Ready == nil || *script.Ready

	rec := &recorder{next: opts.EventSink}
	r := &replay{
		loop:     uiloop.NewManual(),
		store:    tabstore.New(tabstore.Options{HistoryMax: cfg.HistoryMax, Logger: logger}),
		surfaces: core.NewMemorySurfaces(ready),
		log:      logger,
	}
	session, err := core.NewSession(cfg, core.SessionDeps{
		Store:     r.store,
		Scheduler: r.loop,
		Surfaces:  r.surfaces,
		EventSink: rec,
		Logger:    logger,
	})
	if err != nil {
		return Result{}, err
	}
	r.session = session
	r.status = core.NewStatusTracker(session.Registry())
	defer func() {
		r.status.Close()
		session.Close()
	}()

	result := Result{Name: script.Name}
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.step(step); err != nil {
			result.Events = rec.events
			return result, fmt.Errorf("step %d (%s, line %d): %w", i+1, step.Op, step.Line, err)
		}
		r.loop.Settle()
		result.Steps++
		logger.Trace("script step ok", "step", i+1, "op", step.Op)
		if opts.OnStep != nil {
			opts.OnStep(i, step)
		}
	}
	session.Flush()
	result.Events = rec.events
	result.Tabs = r.store.Tabs()
	result.Mode = session.Mode().Mode()
	result.Status = r.status.Status()
	logger.Info("script run ok", "steps", result.Steps, "events", len(result.Events))
	return result, nil
}

// MergeEditor applies the non-zero values of e over base.
func MergeEditor(base schema.SessionConfig, e appconfig.EditorConfig) schema.SessionConfig {
	if e.DebounceMS > 0 {
		base.DebounceDelay = time.Duration(e.DebounceMS) * time.Millisecond
	}
	if e.RestoreAttempts > 0 {
		base.RestoreAttempts = e.RestoreAttempts
	}
	if e.PollIntervalMS > 0 {
		base.PollInterval = time.Duration(e.PollIntervalMS) * time.Millisecond
	}
	if e.PollAttempts > 0 {
		base.PollAttempts = e.PollAttempts
	}
	if e.HistoryMax > 0 {
		base.HistoryMax = e.HistoryMax
	}
	if e.FollowTabMode {
		base.FollowTabMode = true
	}
	return base
}

func (r *replay) step(step Step) error {
	if step.Op == "expect" {
		var expect Expect
		if err := step.Decode(&expect); err != nil {
			return err
		}
		return r.expect(expect)
	}
	args, err := step.Args()
	if err != nil {
		return err
	}
	switch step.Op {
	case "open":
		_, err := r.store.Open(tabstore.OpenRequest{ID: args.ID, Path: args.Path, Content: args.Content, Language: args.Language})
		return err
	case "start":
		return r.session.Start()
	case "mount":
		role := r.roleOr(args, "")
		_, err := r.session.Mount(role, core.SlotOptions{TabID: args.Tab, Baseline: args.Baseline})
		return err
	case "unmount":
		return r.session.Unmount(r.roleOr(args, ""))
	case "type":
		surface, err := r.surface(args, false)
		if err != nil {
			return err
		}
		return surface.Type(first(args.Text, args.Value))
	case "move":
		surface, err := r.surface(args, false)
		if err != nil {
			return err
		}
		pos, err := ParsePosition(first(args.To, args.Value))
		if err != nil {
			return err
		}
		return surface.MoveTo(pos)
	case "select":
		surface, err := r.surface(args, false)
		if err != nil {
			return err
		}
		sel, err := r.selection(args)
		if err != nil {
			return err
		}
		return surface.Select(sel)
	case "key":
		surface, err := r.surface(args, false)
		if err != nil {
			return err
		}
		chord, err := core.ParseKeyChord(first(args.Chord, args.Value))
		if err != nil {
			return err
		}
		surface.Press(chord)
		return nil
	case "focus":
		surface, err := r.surface(args, true)
		if err != nil {
			return err
		}
		return surface.Focus()
	case "layout":
		surface, err := r.surface(args, true)
		if err != nil {
			return err
		}
		surface.SetReady(true)
		return nil
	case "mode":
		mode, err := schema.ParseMode(args.Value)
		if err != nil {
			return err
		}
		return r.session.SetMode(mode)
	case "wait":
		d, err := time.ParseDuration(args.Value)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		r.loop.Advance(d)
		return nil
	case "frame":
		r.loop.Frame()
		return nil
	case "undo":
		r.session.Undo()
		return nil
	case "redo":
		r.session.Redo()
		return nil
	case "switch":
		id := r.tabOr(args)
		if err := r.store.Activate(id); err != nil {
			return err
		}
		return r.session.ActivateTab(id)
	case "close":
		id := r.tabOr(args)
		r.session.CloseTab(id)
		if err := r.store.Close(id); err != nil {
			return err
		}
		if next := r.store.ActiveTabID(); next != "" {
			return r.session.ActivateTab(next)
		}
		return nil
	case "external":
		id := r.tabOr(args)
		if _, ok := r.store.Tab(id); !ok {
			return schema.ErrTabNotFound
		}
		r.store.UpdateTabContent(id, args.Content, schema.UpdateContentOptions{})
		return nil
	case "revert":
		return r.store.Revert(r.tabOr(args))
	case "diff_base":
		return r.session.SetDiffBase(r.tabOr(args))
	}
	return fmt.Errorf("unknown operation %q", step.Op)
}

func (r *replay) roleOr(args Args, fallback schema.Role) schema.Role {
	if args.Role != "" {
		return args.Role
	}
	if args.Value != "" {
		return schema.Role(args.Value)
	}
	return fallback
}

func (r *replay) tabOr(args Args) schema.TabID {
	if args.Tab != "" {
		return args.Tab
	}
	if args.ID != "" {
		return args.ID
	}
	return schema.TabID(args.Value)
}

// surface resolves the surface of the named role, or of the active slot.
// A scalar argument names the role only when valueIsRole is set.
func (r *replay) surface(args Args, valueIsRole bool) (*core.MemorySurface, error) {
	role := args.Role
	if role == "" && valueIsRole && args.Value != "" {
		parsed, err := schema.ParseRole(args.Value)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	if role == "" {
		active := r.session.ActiveSlot()
		if active == nil {
			return nil, schema.ErrSlotNotMounted
		}
		role = active.Role()
	}
	if _, ok := r.session.Slot(role); !ok {
		return nil, fmt.Errorf("%s: %w", role, schema.ErrSlotNotMounted)
	}
	surface := r.surfaces.Latest(role)
	if surface == nil {
		return nil, schema.ErrMissingSurface
	}
	return surface, nil
}

func (r *replay) selection(args Args) (schema.Selection, error) {
	if args.Anchor != "" || args.Active != "" {
		anchor, err := ParsePosition(args.Anchor)
		if err != nil {
			return schema.Selection{}, err
		}
		active, err := ParsePosition(args.Active)
		if err != nil {
			return schema.Selection{}, err
		}
		return schema.SelectionFrom(anchor, active), nil
	}
	return ParseSelection(args.Value)
}

func (r *replay) expect(e Expect) error {
	if e.Mode != nil {
		want, err := schema.ParseMode(*e.Mode)
		if err != nil {
			return err
		}
		if got := r.session.Mode().Mode(); got != want {
			return mismatch("mode", want, got)
		}
	}
	if e.Active != nil {
		got := r.session.ActiveSlot().Role()
		if got != *e.Active {
			return mismatch("active slot", *e.Active, got)
		}
	}
	if e.Mounted != nil {
		var got []schema.Role
		for _, slot := range r.session.Registry().Slots() {
			got = append(got, slot.Role())
		}
		if !slices.Equal(got, e.Mounted) {
			return mismatch("mounted slots", e.Mounted, got)
		}
	}
	if e.Status != nil {
		if got := r.status.Status().String(); got != *e.Status {
			return mismatch("status", *e.Status, got)
		}
	}
	if e.Lexer != nil {
		if got := r.status.Status().Lexer; got != *e.Lexer {
			return mismatch("lexer", *e.Lexer, got)
		}
	}
	if err := r.expectTab(e); err != nil {
		return err
	}
	return r.expectSlot(e)
}

func (r *replay) expectTab(e Expect) error {
	if e.Content == nil && e.Saved == nil && e.Dirty == nil && e.Cursor == nil && e.Selection == nil && e.UndoDepth == nil {
		return nil
	}
	id := e.Tab
	if id == "" {
		id = r.store.ActiveTabID()
	}
	tab, ok := r.store.Tab(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, schema.ErrTabNotFound)
	}
	if e.Content != nil && tab.Content != *e.Content {
		return mismatch("content of "+string(id), *e.Content, tab.Content)
	}
	if e.Saved != nil && tab.SavedContent != *e.Saved {
		return mismatch("saved content of "+string(id), *e.Saved, tab.SavedContent)
	}
	if e.Dirty != nil && tab.IsDirty() != *e.Dirty {
		return mismatch("dirty flag of "+string(id), *e.Dirty, tab.IsDirty())
	}
	if e.Cursor != nil {
		want, err := ParsePosition(*e.Cursor)
		if err != nil {
			return err
		}
		got := "none"
		if tab.Cursor != nil {
			got = tab.Cursor.String()
		}
		if got != want.String() {
			return mismatch("stored cursor of "+string(id), want, got)
		}
	}
	if e.Selection != nil {
		got := "none"
		if sel := schema.NormalizeSelection(tab.Selection); sel != nil {
			got = sel.String()
		}
		if got != *e.Selection {
			return mismatch("stored selection of "+string(id), *e.Selection, got)
		}
	}
	if e.UndoDepth != nil && len(tab.UndoStack) != *e.UndoDepth {
		return mismatch("undo depth of "+string(id), *e.UndoDepth, len(tab.UndoStack))
	}
	return nil
}

func (r *replay) expectSlot(e Expect) error {
	if e.Buffer == nil && e.SurfaceCursor == nil && e.Pending == nil {
		return nil
	}
	role := e.Role
	if role == "" {
		if active := r.session.ActiveSlot(); active != nil {
			role = active.Role()
		}
	}
	slot, ok := r.session.Slot(role)
	if !ok {
		return fmt.Errorf("%s: %w", role, schema.ErrSlotNotMounted)
	}
	if e.Buffer != nil {
		got := ""
		if buf := slot.Buffer(); buf != nil {
			got = buf.Text()
		}
		if got != *e.Buffer {
			return mismatch(string(role)+" buffer", *e.Buffer, got)
		}
	}
	if e.SurfaceCursor != nil {
		want, err := ParsePosition(*e.SurfaceCursor)
		if err != nil {
			return err
		}
		got, err := slot.Cursor()
		if err != nil {
			return err
		}
		if got != want {
			return mismatch(string(role)+" cursor", want, got)
		}
	}
	if e.Pending != nil && slot.PendingPush() != *e.Pending {
		return mismatch(string(role)+" pending push", *e.Pending, slot.PendingPush())
	}
	return nil
}

func mismatch(what string, want, got any) error {
	return fmt.Errorf("%w: %s: want %v, got %v", ErrExpectation, what, want, got)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
