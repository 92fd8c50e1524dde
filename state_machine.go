package aegisx

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested session state
// change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// SessionState names a position in the session lifecycle.
type SessionState string

const (
	// SessionStateAnonymous is the empty session (no token, no user).
	SessionStateAnonymous SessionState = "anonymous"
	// SessionStateAuthenticated holds a token and a user projection.
	SessionStateAuthenticated SessionState = "authenticated"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	From  SessionState
	To    SessionState
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after
// the state change.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// SessionLifecycle centralizes the session transition graph:
// anonymous moves to authenticated on login/register/restore,
// authenticated re-enters itself on token rotation and falls back to
// anonymous on logout or refresh failure.
type SessionLifecycle interface {
	Transition(ctx context.Context, actor ActorRef, target SessionState, opts ...TransitionOption) (SessionState, error)
	Current() SessionState
}

// LifecycleOption customizes lifecycle construction.
type LifecycleOption func(*sessionLifecycle)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(sm *sessionLifecycle) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithLifecycleActivitySink sets the ActivitySink used to publish
// state-change events.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(sm *sessionLifecycle) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithLifecycleLogger overrides the logger used for sink failures.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(sm *sessionLifecycle) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithLifecycleHookErrorHandler overrides how hook failures are
// propagated. The default handler panics with guidance for developers.
func WithLifecycleHookErrorHandler(handler HookErrorHandler) LifecycleOption {
	return func(sm *sessionLifecycle) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the state change.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the state change.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewSessionLifecycle returns the default lifecycle implementation,
// starting anonymous.
func NewSessionLifecycle(opts ...LifecycleOption) SessionLifecycle {
	sm := &sessionLifecycle{
		state: SessionStateAnonymous,
		transitions: map[SessionState]map[SessionState]struct{}{
			SessionStateAnonymous: {
				SessionStateAuthenticated: {},
			},
			SessionStateAuthenticated: {
				// Self-transition covers token rotation on refresh.
				SessionStateAuthenticated: {},
				SessionStateAnonymous:     {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type sessionLifecycle struct {
	mu               sync.Mutex
	state            SessionState
	transitions      map[SessionState]map[SessionState]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *sessionLifecycle) Current() SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

func (sm *sessionLifecycle) Transition(ctx context.Context, actor ActorRef, target SessionState, opts ...TransitionOption) (SessionState, error) {
	if target == "" {
		return sm.Current(), errWithMetadata(ErrInvalidTransition, map[string]any{
			"reason": "target state is empty",
		})
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	sm.mu.Lock()
	from := sm.state

	if !options.force && !sm.canTransition(from, target) {
		sm.mu.Unlock()
		return from, errWithMetadata(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   target,
		})
	}
	sm.mu.Unlock()

	ctxData := TransitionContext{
		Actor: actor,
		From:  from,
		To:    target,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return from, err
	}

	sm.mu.Lock()
	sm.state = target
	sm.mu.Unlock()

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return target, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionStateChange,
		Actor:     actor,
		UserID:    actor.ID,
		FromState: from,
		ToState:   target,
		Metadata:  sm.transitionMetadata(ctxData.Meta),
	})

	return target, nil
}

func (sm *sessionLifecycle) canTransition(from, to SessionState) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *sessionLifecycle) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"aegisx: %s transition hook failed: %v\nfrom=%s to=%s reason=%s\nProvide aegisx.WithLifecycleHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (sm *sessionLifecycle) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("session lifecycle activity sink error: %v", err)
	}
}

func (sm *sessionLifecycle) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
