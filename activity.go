package aegisx

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventRegisterSuccess    ActivityEventType = "auth.register.success"
	ActivityEventRegisterFailure    ActivityEventType = "auth.register.failure"
	ActivityEventLogout             ActivityEventType = "auth.logout"
	ActivityEventTokenRefreshed     ActivityEventType = "auth.token.refreshed"
	ActivityEventRefreshFailure     ActivityEventType = "auth.token.refresh_failure"
	ActivityEventSessionRestored    ActivityEventType = "auth.session.restored"
	ActivityEventSessionExpired     ActivityEventType = "auth.session.expired"
	ActivityEventSessionStateChange ActivityEventType = "session.state.changed"
	ActivityEventNavigationLoaded   ActivityEventType = "navigation.loaded"
	ActivityEventNavigationFallback ActivityEventType = "navigation.fallback"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromState  SessionState
	ToState    SessionState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry
// purposes. Sinks run best-effort: failures are logged, never
// propagated, so forwarding to a queue or store can not block the
// auth flow.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
