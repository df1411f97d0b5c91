package logx

import (
	"context"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	tabKey contextKey = iota
	roleKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id if present.
func WithTab(log pslog.Logger, tabID schema.TabID) pslog.Logger {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if tabID != "" {
		log = log.With("tab", tabID)
	}
	return log
}

// WithSlot annotates the logger with slot role and tab identifiers.
func WithSlot(log pslog.Logger, role schema.Role, tabID schema.TabID) pslog.Logger {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if role != "" {
		log = log.With("slot", role)
	}
	return WithTab(log, tabID)
}

// WithPath annotates the logger with a file path when available.
func WithPath(log pslog.Logger, path string) pslog.Logger {
	if path != "" {
		log = log.With("path", path)
	}
	return log
}

// TabFromContext annotates the context logger with the tab id unless the
// context already carries the same marker.
func TabFromContext(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID == "" {
		return log
	}
	if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
		return log
	}
	return log.With("tab", tabID)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithTabLogger attaches the logger, annotated with the tab id, and
// the tab marker to the context.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, WithTab(log, tabID))
	return ContextWithTab(ctx, tabID)
}

// ContextWithRole stores the slot role marker on the context.
func ContextWithRole(ctx context.Context, role schema.Role) context.Context {
	if ctx == nil || role == "" {
		return ctx
	}
	return context.WithValue(ctx, roleKey, role)
}

// CopyContextFields copies tab and role markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok && tab != "" {
		dst = ContextWithTab(dst, tab)
	}
	if role, ok := src.Value(roleKey).(schema.Role); ok && role != "" {
		dst = ContextWithRole(dst, role)
	}
	return dst
}
