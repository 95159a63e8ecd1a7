package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "Jane Doe", "janedoe", "jane@school.test", "LePa$$w0rd", user.RoleStudent, true)
	inactive := testutil.CreateUser(t, usrRepo, "Gone Guy", "goneguy", "gone@school.test", "LePa$$w0rd", user.RoleStudent, false)
	_ = inactive

	tests := []httpTest{
		{
			name: "empty payload", method: http.MethodPost, path: "/v1/users/login", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "nobody", "password": "LePa$$w0rd"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "janedoe", "password": "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "goneguy", "password": "LePa$$w0rd"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "janedoe", "password": "LePa$$w0rd"}),
			wantCode: http.StatusOK,
		},
		{
			name: "login with email", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "jane@school.test", "password": "LePa$$w0rd"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				decodeBody(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}

	t.Run("last login is set", func(t *testing.T) {
		refreshed, err := usrRepo.GetUser(ctx(), user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.False(t, refreshed.LastLogin.IsZero())
	})
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@school.test", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "admin required", method: http.MethodGet, path: "/v1/users", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "get all", method: http.MethodGet, path: "/v1/users", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, admin, student),
		},
		{
			name: "filter role=student", method: http.MethodGet, path: "/v1/users?role=student", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, student),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@school.test", "", user.RoleAdmin, true)
	jane := testutil.CreateUser(t, usrRepo, "Jane", "janedoe", "jane@school.test", "", user.RoleStudent, true)
	john := testutil.CreateUser(t, usrRepo, "John", "johndoe", "john@school.test", "", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "own profile", method: http.MethodGet, path: "/v1/users/" + jane.ID, token: getToken(t, jane),
			wantCode: http.StatusOK, wantData: marchallObj(t, jane),
		},
		{
			name: "someone else's profile is hidden", method: http.MethodGet, path: "/v1/users/" + john.ID,
			token: getToken(t, jane), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "admin sees anyone", method: http.MethodGet, path: "/v1/users/" + john.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, john),
		},
		{
			name: "non-admin cannot change role", method: http.MethodPut, path: "/v1/users/" + jane.ID,
			token: getToken(t, jane), body: marchallObj(t, map[string]string{"role": user.RoleAdmin}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: getToken(t, admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "delete requires admin", method: http.MethodDelete, path: "/v1/users/" + jane.ID,
			token: getToken(t, jane), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "admin deletes", method: http.MethodDelete, path: "/v1/users/" + john.ID, token: getToken(t, admin),
			wantCode: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, usrRepo, "Jane", "janedoe", "jane@school.test", "OldPa$$w0rd", user.RoleStudent, true)

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, map[string]string{"email": "jane@school.test"}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mailSvc.Sent(), 1)
	assert.Equal(t, "Password reset", mailSvc.Sent()[0].Subject)

	// unknown emails get the same response and no mail
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, map[string]string{"email": "nobody@school.test"}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mailSvc.Sent(), 1)
}
