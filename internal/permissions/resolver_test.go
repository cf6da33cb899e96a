package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/database/testutil"
	"github.com/tacticalpanel/panel/internal/models"
)

func createUser(t *testing.T, db *gorm.DB, user *models.User) *models.User {
	t.Helper()
	if user.PasswordHash == "" {
		user.PasswordHash = "hash"
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newResolver(t *testing.T) (*Resolver, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db)
	require.NoError(t, err)
	return resolver, db
}

func TestNewResolverRequiresDB(t *testing.T) {
	_, err := NewResolver(nil)
	require.Error(t, err)
}

func TestAdminCanPerformAnything(t *testing.T) {
	resolver, db := newResolver(t)
	admin := createUser(t, db, &models.User{Username: "root", IsAdmin: true})

	ctx := context.Background()
	for _, action := range models.Actions {
		ok, err := resolver.CanPerform(ctx, admin.ID, "any-server", action)
		require.NoError(t, err)
		require.True(t, ok, action)
	}

	isAdmin, err := resolver.IsAdmin(ctx, admin.ID)
	require.NoError(t, err)
	require.True(t, isAdmin)
}

func TestSubAdminFollowsGrants(t *testing.T) {
	resolver, db := newResolver(t)
	admin := createUser(t, db, &models.User{Username: "root", IsAdmin: true})
	sub := createUser(t, db, &models.User{
		Username:      "helper",
		IsSubAdmin:    true,
		ParentAdminID: &admin.ID,
		Permissions: datatypes.NewJSONType(models.ServerPermissions{
			"srv-1": {Start: true, Stop: false},
		}),
	})

	ctx := context.Background()
	ok, err := resolver.CanPerform(ctx, sub.ID, "srv-1", models.ActionStart)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.CanPerform(ctx, sub.ID, "srv-1", models.ActionStop)
	require.NoError(t, err)
	require.False(t, ok)

	for _, action := range models.Actions {
		ok, err = resolver.CanPerform(ctx, sub.ID, "srv-2", action)
		require.NoError(t, err)
		require.False(t, ok, "no entry for srv-2 must deny %s", action)
	}

	isAdmin, err := resolver.IsAdmin(ctx, sub.ID)
	require.NoError(t, err)
	require.False(t, isAdmin)
}

func TestRegularUserAndUnknownsAreDenied(t *testing.T) {
	resolver, db := newResolver(t)
	user := createUser(t, db, &models.User{Username: "alice"})
	admin := createUser(t, db, &models.User{Username: "root", IsAdmin: true})

	ctx := context.Background()
	ok, err := resolver.CanPerform(ctx, user.ID, "srv-1", models.ActionView)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.CanPerform(ctx, "missing-user", "srv-1", models.ActionView)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.CanPerform(ctx, admin.ID, "srv-1", "delete")
	require.NoError(t, err)
	require.False(t, ok)

	isAdmin, err := resolver.IsAdmin(ctx, "missing-user")
	require.NoError(t, err)
	require.False(t, isAdmin)
}

func TestRoleOf(t *testing.T) {
	parent := "admin-1"

	require.IsType(t, UserRole{}, RoleOf(nil))
	require.IsType(t, AdminRole{}, RoleOf(&models.User{IsAdmin: true}))
	require.IsType(t, UserRole{}, RoleOf(&models.User{IsSubAdmin: true}))

	role := RoleOf(&models.User{IsSubAdmin: true, ParentAdminID: &parent})
	sub, ok := role.(SubAdminRole)
	require.True(t, ok)
	require.NotNil(t, sub.Grants)
}

func TestAllowsIsPure(t *testing.T) {
	role := SubAdminRole{Grants: models.ServerPermissions{"s": {View: true}}}
	require.True(t, Allows(role, "s", models.ActionView))
	require.False(t, Allows(role, "s", models.ActionEdit))
	require.False(t, Allows(UserRole{}, "s", models.ActionView))
	require.True(t, Allows(AdminRole{}, "s", models.ActionRestart))
	require.False(t, Allows(AdminRole{}, "s", "shutdown"))
}
