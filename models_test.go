package aegisx_test

import (
	"testing"

	aegisx "github.com/aegisx/go-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserDisplayName(t *testing.T) {
	full := &aegisx.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	assert.Equal(t, "Ada Lovelace", full.DisplayName())

	firstOnly := &aegisx.User{FirstName: "Ada", Email: "ada@example.com"}
	assert.Equal(t, "Ada", firstOnly.DisplayName())

	emailOnly := &aegisx.User{Email: "ada@example.com"}
	assert.Equal(t, "ada", emailOnly.DisplayName())

	malformed := &aegisx.User{Email: "@example.com"}
	assert.Equal(t, "@example.com", malformed.DisplayName())

	var none *aegisx.User
	assert.Equal(t, "", none.DisplayName())
}

func TestUserInitials(t *testing.T) {
	full := &aegisx.User{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "AL", full.Initials())

	firstOnly := &aegisx.User{FirstName: "Ada"}
	assert.Equal(t, "A", firstOnly.Initials())

	emailOnly := &aegisx.User{Email: "grace.hopper@example.com"}
	assert.Equal(t, "G", emailOnly.Initials())

	empty := &aegisx.User{}
	assert.Equal(t, "", empty.Initials())
}

func TestUserHasPermissionExplicitListWinsFirst(t *testing.T) {
	user := &aegisx.User{
		Role:        aegisx.RoleGuest,
		Permissions: []string{"reports:create"},
	}

	assert.True(t, user.HasPermission("reports:create"), "explicit grant beats guest role")
	assert.False(t, user.HasPermission("reports:delete"))
}

func TestUserHasPermissionRoleFallback(t *testing.T) {
	admin := &aegisx.User{Role: aegisx.RoleAdmin}
	assert.True(t, admin.HasPermission("reports:read"))
	assert.True(t, admin.HasPermission("reports:edit"))
	assert.True(t, admin.HasPermission("reports:create"))
	assert.False(t, admin.HasPermission("reports:delete"), "delete is owner-only")

	owner := &aegisx.User{Role: aegisx.RoleOwner}
	assert.True(t, owner.HasPermission("reports:delete"))

	guest := &aegisx.User{Role: aegisx.RoleGuest}
	assert.True(t, guest.HasPermission("reports:view"))
	assert.False(t, guest.HasPermission("reports:edit"))
}

func TestUserHasPermissionWildcards(t *testing.T) {
	user := &aegisx.User{Role: aegisx.RoleGuest, Permissions: []string{"files:*"}}
	assert.True(t, user.HasPermission("files:delete"))
	assert.False(t, user.HasPermission("reports:delete"))

	super := &aegisx.User{Role: aegisx.RoleGuest, Permissions: []string{"*"}}
	assert.True(t, super.HasPermission("anything:at-all"))
}

func TestUserCloneIsIndependent(t *testing.T) {
	original := &aegisx.User{
		ID:          "user-1",
		Permissions: []string{"files:read"},
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	clone.Permissions[0] = "files:delete"
	assert.Equal(t, "files:read", original.Permissions[0])

	var none *aegisx.User
	assert.Nil(t, none.Clone())
}

func TestLoginPayloadValidation(t *testing.T) {
	valid := aegisx.LoginPayload{Email: "user@example.com", Password: "s3cret-pass"}
	assert.NoError(t, valid.Validate())

	missing := aegisx.LoginPayload{}
	assert.Error(t, missing.Validate())

	badEmail := aegisx.LoginPayload{Email: "not-an-email", Password: "s3cret-pass"}
	assert.Error(t, badEmail.Validate())
}

func TestRegisterPayloadValidation(t *testing.T) {
	valid := aegisx.RegisterPayload{Email: "user@example.com", Password: "s3cret-pass"}
	assert.NoError(t, valid.Validate())

	short := aegisx.RegisterPayload{Email: "user@example.com", Password: "short"}
	assert.Error(t, short.Validate())
}
