package logx

import (
	"context"

	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	projectKey contextKey = iota
	sessionKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithProject annotates the logger with the project id if present.
func WithProject(log pslog.Logger, project schema.ProjectID) pslog.Logger {
	if project != "" {
		log = log.With("project", project)
	}
	return log
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// ContextWithProject stores the project marker on the context for log
// de-duplication.
func ContextWithProject(ctx context.Context, project schema.ProjectID) context.Context {
	if ctx == nil || project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, project)
}

// ContextWithSession stores the session marker on the context for log
// de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ProjectCtx annotates the context logger with the project id, skipping the
// annotation when the context already carries the same marker.
func ProjectCtx(ctx context.Context, project schema.ProjectID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if project == "" {
		return log
	}
	if current, ok := ctx.Value(projectKey).(schema.ProjectID); ok && current == project {
		return log
	}
	return log.With("project", project)
}
