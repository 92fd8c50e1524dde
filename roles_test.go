package aegisx_test

import (
	"testing"

	aegisx "github.com/aegisx/go-client"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := aegisx.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, aegisx.RoleAdmin, role)

	_, ok = aegisx.ParseRole("superuser")
	assert.False(t, ok)
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, aegisx.RoleCanRead(aegisx.RoleGuest))
	assert.False(t, aegisx.RoleCanEdit(aegisx.RoleGuest))

	assert.True(t, aegisx.RoleCanEdit(aegisx.RoleMember))
	assert.False(t, aegisx.RoleCanCreate(aegisx.RoleMember))

	assert.True(t, aegisx.RoleCanCreate(aegisx.RoleAdmin))
	assert.False(t, aegisx.RoleCanDelete(aegisx.RoleAdmin))

	assert.True(t, aegisx.RoleCanDelete(aegisx.RoleOwner))

	assert.False(t, aegisx.RoleCanRead("superuser"))
}

func TestRoleIsAtLeast(t *testing.T) {
	assert.True(t, aegisx.RoleIsAtLeast(aegisx.RoleOwner, aegisx.RoleGuest))
	assert.True(t, aegisx.RoleIsAtLeast(aegisx.RoleAdmin, aegisx.RoleAdmin))
	assert.False(t, aegisx.RoleIsAtLeast(aegisx.RoleMember, aegisx.RoleAdmin))
	assert.False(t, aegisx.RoleIsAtLeast("superuser", aegisx.RoleGuest))
	assert.False(t, aegisx.RoleIsAtLeast(aegisx.RoleOwner, "superuser"))
}

func TestGetAllRolesOrder(t *testing.T) {
	roles := aegisx.GetAllRoles()
	assert.Equal(t, []aegisx.UserRole{
		aegisx.RoleGuest,
		aegisx.RoleMember,
		aegisx.RoleAdmin,
		aegisx.RoleOwner,
	}, roles)
}

func TestMatchPermission(t *testing.T) {
	assert.True(t, aegisx.MatchPermission("files:read", "files:read"))
	assert.False(t, aegisx.MatchPermission("files:read", "files:write"))

	assert.True(t, aegisx.MatchPermission("files:*", "files:write"))
	assert.False(t, aegisx.MatchPermission("files:*", "reports:write"))

	assert.True(t, aegisx.MatchPermission("*", "anything:here"))

	assert.False(t, aegisx.MatchPermission("", "files:read"))
	assert.False(t, aegisx.MatchPermission("files:read", ""))
}
