package users

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSteppedRepo() *MemoryRepository {
	r := NewMemoryRepository()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	r.now = func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
	return r
}

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	r := newSteppedRepo()

	u, err := r.Create(ctx, &models.User{Email: "a@example.com", Name: "A", Role: models.RoleUser, PasswordHash: "h"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)

	_, err = r.Create(ctx, &models.User{Email: "a@example.com"})
	require.ErrorIs(t, err, common.ErrEmailTaken)

	got, err := r.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "h", got.PasswordHash)

	got.Email = "a2@example.com"
	got.Role = models.RoleAdmin
	_, err = r.Update(ctx, got)
	require.NoError(t, err)

	_, err = r.FindByEmail(ctx, "a@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	byID, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2@example.com", byID.Email)
	assert.Equal(t, models.RoleAdmin, byID.Role)
	assert.True(t, byID.UpdatedAt.After(byID.CreatedAt))

	require.NoError(t, r.Delete(ctx, u.ID))
	require.ErrorIs(t, r.Delete(ctx, u.ID), common.ErrorNotFound)
	_, err = r.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_UpdateConflicts(t *testing.T) {
	ctx := context.Background()
	r := newSteppedRepo()

	a, err := r.Create(ctx, &models.User{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = r.Create(ctx, &models.User{Email: "b@example.com"})
	require.NoError(t, err)

	_, err = r.Update(ctx, &models.User{ID: a.ID, Email: "b@example.com"})
	require.ErrorIs(t, err, common.ErrEmailTaken)

	_, err = r.Update(ctx, &models.User{ID: uuid.New(), Email: "c@example.com"})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newSteppedRepo()

	var ids []uuid.UUID
	for _, e := range []string{"1@x.io", "2@x.io", "3@x.io"} {
		u, err := r.Create(ctx, &models.User{Email: e})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	page, err := r.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = r.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = r.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
