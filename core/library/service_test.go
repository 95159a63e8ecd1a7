package library_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

var ctx = context.Background()

func newTestService(t *testing.T) library.ServiceInterface {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	return library.NewService(dummydb.NewLibraryRepository(db))
}

func newUser(role string) *user.User {
	return &user.User{ID: uuid.New().String(), Role: role}
}

func TestService_Items(t *testing.T) {
	svc := newTestService(t)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	itm, err := svc.Create(ctx, t1, library.NewItem{Title: "Calculus Notes", Category: "math"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, itm.UploadedByID)

	t.Run("student cannot upload", func(t *testing.T) {
		_, err := svc.Create(ctx, student, library.NewItem{Title: "Nope"})
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("public listing", func(t *testing.T) {
		items, err := svc.Query(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
	t.Run("teacher listing scoped to own uploads", func(t *testing.T) {
		items, err := svc.Query(ctx, t2, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
	t.Run("uploader updates, others cannot see", func(t *testing.T) {
		updated, err := svc.Update(ctx, t1, itm.ID, library.UpdateItem{Title: "Calculus Notes v2"})
		require.NoError(t, err)
		assert.Equal(t, "Calculus Notes v2", updated.Title)

		_, err = svc.Update(ctx, t2, itm.ID, library.UpdateItem{Title: "Hijack"})
		assert.Equal(t, library.ErrNotFound, err)
	})
	t.Run("download tally", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := svc.RecordDownload(ctx, itm.ID)
			require.NoError(t, err)
		}
		got, err := svc.GetByID(ctx, student, itm.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.TotalDownloads)
	})
}

func TestService_Favorites(t *testing.T) {
	svc := newTestService(t)
	teacher := newUser(user.RoleTeacher)
	s1 := newUser(user.RoleStudent)
	s2 := newUser(user.RoleStudent)

	itm, err := svc.Create(ctx, teacher, library.NewItem{Title: "Calculus Notes"})
	require.NoError(t, err)

	fav, err := svc.Favorite(ctx, s1, itm.ID)
	require.NoError(t, err)

	t.Run("favoriting twice keeps one row", func(t *testing.T) {
		again, err := svc.Favorite(ctx, s1, itm.ID)
		require.NoError(t, err)
		assert.Equal(t, fav.ID, again.ID)
	})
	t.Run("scoped to the owning user", func(t *testing.T) {
		favs, err := svc.QueryFavorites(ctx, s1, nil)
		require.NoError(t, err)
		assert.Len(t, favs, 1)

		favs, err = svc.QueryFavorites(ctx, s2, nil)
		require.NoError(t, err)
		assert.Empty(t, favs)

		favs, err = svc.QueryFavorites(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, favs) // no public view
	})
	t.Run("unfavorite", func(t *testing.T) {
		require.NoError(t, svc.Unfavorite(ctx, s1, itm.ID))
		favs, err := svc.QueryFavorites(ctx, s1, nil)
		require.NoError(t, err)
		assert.Empty(t, favs)
	})
	t.Run("anonymous cannot favorite", func(t *testing.T) {
		_, err := svc.Favorite(ctx, nil, itm.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
}
