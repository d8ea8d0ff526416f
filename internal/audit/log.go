// Package audit emits structured security events: logins, token reuse,
// session revocation, key and grant lifecycle.
package audit

import (
	"context"
	"strings"

	"videxa.org/internal/auth"
	"videxa.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event writes one audit entry enriched with request and actor context.
// Extra key/value pairs follow zap's sugared convention.
func Event(ctx context.Context, event string, kv ...any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	fields := []any{"type", "audit", "event", event}
	if rid := RequestIDFromContext(ctx); rid != "" {
		fields = append(fields, "request_id", rid)
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok && p.User != nil {
		fields = append(fields, "actor_id", p.User.ID)
		if p.SessionID != "" {
			fields = append(fields, "session_id", p.SessionID)
		}
	}
	fields = append(fields, kv...)
	obs.Logger().Infow("audit", fields...)
}
