package aegisx_test

import (
	"context"
	"testing"

	aegisx "github.com/aegisx/go-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := aegisx.UserFromContext(ctx)
	assert.False(t, ok)

	user := &aegisx.User{ID: "user-1", Role: aegisx.RoleMember}
	ctx = aegisx.WithUserContext(ctx, user)

	got, ok := aegisx.UserFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := aegisx.CorrelationIDFromContext(ctx)
	assert.False(t, ok)

	ctx = aegisx.WithCorrelationID(ctx, "corr-42")
	id, ok := aegisx.CorrelationIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "corr-42", id)
}

func TestCan(t *testing.T) {
	ctx := context.Background()
	assert.False(t, aegisx.Can(ctx, "files:read"), "no user in context")

	ctx = aegisx.WithUserContext(ctx, &aegisx.User{Role: aegisx.RoleMember})
	assert.True(t, aegisx.Can(ctx, "files:read"))
	assert.True(t, aegisx.Can(ctx, "files:edit"))
	assert.False(t, aegisx.Can(ctx, "files:delete"))
}
