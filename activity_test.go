package aegisx_test

import (
	"context"
	"errors"
	"testing"

	aegisx "github.com/aegisx/go-client"
	"github.com/stretchr/testify/assert"
)

func TestActivitySinkFunc(t *testing.T) {
	var got aegisx.ActivityEvent
	sink := aegisx.ActivitySinkFunc(func(ctx context.Context, event aegisx.ActivityEvent) error {
		got = event
		return nil
	})

	err := sink.Record(context.Background(), aegisx.ActivityEvent{EventType: aegisx.ActivityEventLogout})
	assert.NoError(t, err)
	assert.Equal(t, aegisx.ActivityEventLogout, got.EventType)

	var nilSink aegisx.ActivitySinkFunc
	assert.NoError(t, nilSink.Record(context.Background(), aegisx.ActivityEvent{}))
}

func TestActivitySinkFailureDoesNotBreakAuthFlow(t *testing.T) {
	sm := aegisx.NewSessionLifecycle(
		aegisx.WithLifecycleActivitySink(aegisx.ActivitySinkFunc(func(ctx context.Context, event aegisx.ActivityEvent) error {
			return errors.New("sink offline")
		})),
	)

	state, err := sm.Transition(context.Background(), aegisx.ActorRef{ID: "user-1"}, aegisx.SessionStateAuthenticated)
	assert.NoError(t, err, "sink failures are logged, never propagated")
	assert.Equal(t, aegisx.SessionStateAuthenticated, state)
}

func TestNavigatorFunc(t *testing.T) {
	var route string
	nav := aegisx.NavigatorFunc(func(r string) { route = r })
	nav.Navigate("/dashboard")
	assert.Equal(t, "/dashboard", route)

	var nilNav aegisx.NavigatorFunc
	assert.NotPanics(t, func() { nilNav.Navigate("/anywhere") })
}
