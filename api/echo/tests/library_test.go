package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_libraryApi(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	item, err := libraryRepo.CreateItem(ctx(), library.Item{Title: "Atlas", ItemType: "book", UploadedByID: teacher.ID})
	require.NoError(t, err)

	t.Run("anonymous browsing is public", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/library")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var items []library.Item
		decodeBody(t, rec, &items)
		assert.Len(t, items, 1)
	})

	t.Run("student upload denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/library", getToken(t, student),
			marchallObj(t, map[string]string{"title": "Notes"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("downloads tally up", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req, rec := newRequest(http.MethodPost, "/v1/library/"+item.ID+"/download")
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
		stored, err := libraryRepo.GetItem(ctx(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.TotalDownloads)
	})

	t.Run("favorites", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/library/"+item.ID+"/favorite", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var fav library.Favorite
		decodeBody(t, rec, &fav)
		assert.Equal(t, student.ID, fav.UserID)

		// idempotent
		req, rec = newAuthRequest(http.MethodPost, "/v1/library/"+item.ID+"/favorite", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var again library.Favorite
		decodeBody(t, rec, &again)
		assert.Equal(t, fav.ID, again.ID)

		// anonymous cannot list favorites
		req, rec = newRequest(http.MethodGet, "/v1/library-favorites")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// owner sees theirs
		req, rec = newAuthRequest(http.MethodGet, "/v1/library-favorites", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var favorites []library.Favorite
		decodeBody(t, rec, &favorites)
		assert.Len(t, favorites, 1)

		// and can remove it
		req, rec = newAuthRequest(http.MethodDelete, "/v1/library/"+item.ID+"/favorite", getToken(t, student))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
