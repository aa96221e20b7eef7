package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"teaching-workload/internal/model"
)

func TestControllerSeeder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hasher := fastHasher()

	t.Run("creates one temporary controller on an empty store", func(t *testing.T) {
		store := newMemUserStore()
		audit := &recordingAudit{}
		seeder := NewControllerSeeder(store, hasher, audit, "admin", "initial-secret")

		created, err := seeder.Run(ctx)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, 1, store.count(model.RoleController))

		admin, err := store.FindByUsername(ctx, "admin")
		require.NoError(t, err)
		require.Equal(t, model.RoleController, admin.Role)
		require.True(t, admin.IsPasswordTemporary)
		require.True(t, hasher.Verify("initial-secret", admin.PasswordHash))
		require.Equal(t, []string{"user.controller_seeded:success"}, audit.actions())
	})

	t.Run("is idempotent", func(t *testing.T) {
		store := newMemUserStore()
		seeder := NewControllerSeeder(store, hasher, nil, "admin", "initial-secret")

		_, err := seeder.Run(ctx)
		require.NoError(t, err)

		created, err := seeder.Run(ctx)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, 1, store.count(model.RoleController))
	})

	t.Run("never overwrites an existing controller", func(t *testing.T) {
		store := newMemUserStore()
		existing := seedUser(store, hasher, "boss", "chosen-password", model.RoleController, false)
		seeder := NewControllerSeeder(store, hasher, nil, "boss", "config-password")

		created, err := seeder.Run(ctx)
		require.NoError(t, err)
		require.False(t, created)

		stored, err := store.FindByID(ctx, existing.ID)
		require.NoError(t, err)
		require.False(t, stored.IsPasswordTemporary)
		require.True(t, hasher.Verify("chosen-password", stored.PasswordHash))
	})

	t.Run("tolerates the username being taken", func(t *testing.T) {
		store := newMemUserStore()
		seedUser(store, hasher, "admin", "teacher-password", model.RoleTeacher, false)
		seeder := NewControllerSeeder(store, hasher, nil, "admin", "initial-secret")

		created, err := seeder.Run(ctx)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, 0, store.count(model.RoleController))
	})

	t.Run("fails without configured credentials", func(t *testing.T) {
		seeder := NewControllerSeeder(newMemUserStore(), hasher, nil, " ", "")

		_, err := seeder.Run(ctx)
		require.Error(t, err)
	})
}
