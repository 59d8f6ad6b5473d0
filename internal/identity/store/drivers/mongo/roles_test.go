package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRoleStore(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	roles := s.Roles()
	ctx := context.Background()

	admin := &domain.Role{Name: "Admin", NormalizedName: "ADMIN"}
	require.NoError(t, roles.Create(ctx, admin))
	require.NotEmpty(t, admin.ID)

	t.Run("find", func(t *testing.T) {
		got, err := roles.FindByID(ctx, admin.ID)
		require.NoError(t, err)
		require.Equal(t, admin, got)

		got, err = roles.FindByName(ctx, "ADMIN")
		require.NoError(t, err)
		require.Equal(t, admin.ID, got.ID)

		_, err = roles.FindByID(ctx, "12345")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = roles.FindByName(ctx, "MISSING")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate normalized name", func(t *testing.T) {
		err := roles.Create(ctx, &domain.Role{Name: "admin", NormalizedName: "ADMIN"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, roles.SetRoleName(ctx, admin, "Administrators"))
		require.NoError(t, roles.SetNormalizedRoleName(ctx, admin, "ADMINISTRATORS"))
		require.NoError(t, roles.Update(ctx, admin))

		got, err := roles.FindByName(ctx, "ADMINISTRATORS")
		require.NoError(t, err)
		require.Equal(t, "Administrators", got.Name)
	})

	t.Run("list is sorted", func(t *testing.T) {
		require.NoError(t, roles.Create(ctx, &domain.Role{Name: "Auditor", NormalizedName: "AUDITOR"}))
		list, err := roles.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "ADMINISTRATORS", list[0].NormalizedName)
		require.Equal(t, "AUDITOR", list[1].NormalizedName)
	})

	t.Run("concurrency", func(t *testing.T) {
		ghost := &domain.Role{ID: bson.NewObjectID().Hex(), Name: "Ghost", NormalizedName: "GHOST"}
		require.ErrorIs(t, roles.Update(ctx, ghost), store.ErrConcurrencyFailure)
		require.ErrorIs(t, roles.Delete(ctx, ghost), store.ErrConcurrencyFailure)

		require.NoError(t, roles.Delete(ctx, admin))
		require.ErrorIs(t, roles.Delete(ctx, admin), store.ErrConcurrencyFailure)
	})
}

func TestRoleStoreArguments(t *testing.T) {
	t.Parallel()
	roles := NewRoleStore(nil)
	ctx := context.Background()

	require.ErrorIs(t, roles.Create(ctx, nil), store.ErrInvalidArgument)
	_, err := roles.FindByID(ctx, "")
	require.ErrorIs(t, err, store.ErrInvalidArgument)
	require.ErrorIs(t, roles.Create(ctx, &domain.Role{ID: "nope", Name: "x"}), store.ErrInvalidArgument)
}
