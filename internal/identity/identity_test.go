package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipal_Roles(t *testing.T) {
	admin := Principal{UserID: "u1", Role: RoleAdmin}
	librarian := Principal{UserID: "u2", Role: RoleLibrarian}
	member := Principal{UserID: "u3", Role: RoleMember}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff())
	assert.False(t, librarian.IsAdmin())
	assert.True(t, librarian.IsStaff())
	assert.False(t, member.IsStaff())

	assert.True(t, member.Owns("u3"))
	assert.False(t, member.Owns("u1"))
	assert.False(t, Principal{}.Owns(""))
}

func TestContextRoundTrip(t *testing.T) {
	assert.False(t, FromContext(context.Background()).Authenticated())

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1", Role: RoleMember})
	assert.Equal(t, "u1", FromContext(ctx).UserID)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	assert.NoError(t, RequireOwnerOrAdmin(Principal{UserID: "a", Role: RoleAdmin}, "u1"))
	assert.NoError(t, RequireOwnerOrAdmin(Principal{UserID: "u1", Role: RoleMember}, "u1"))
	assert.ErrorIs(t, RequireOwnerOrAdmin(Principal{UserID: "u2", Role: RoleLibrarian}, "u1"), ErrForbidden)
	assert.ErrorIs(t, RequireOwnerOrAdmin(Principal{}, ""), ErrForbidden)
}
