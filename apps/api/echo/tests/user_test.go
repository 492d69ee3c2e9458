package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jifunze/core/user"
	testutil "github.com/trezcool/jifunze/tests"
)

func TestUserQuery(t *testing.T) {
	resetDB(t)
	now := time.Now()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@example.com", user.RoleAdmin, now.Add(-4*time.Hour))
	prof := testutil.CreateUser(t, usrRepo, "Zed Prof", "zed@example.com", user.RoleProfessor, now.Add(-3*time.Hour))
	john := testutil.CreateUser(t, usrRepo, "John Doe", "john@example.com", user.RoleStudent, now.Add(-2*time.Hour))
	jane := testutil.CreateUser(t, usrRepo, "Jane Doe", "jane@example.com", user.RoleStudent, now.Add(-time.Hour))

	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name:     "unauthenticated",
			path:     "/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "professors are forbidden",
			path:     "/users",
			token:    getToken(t, prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "students are forbidden",
			path:     "/users",
			token:    getToken(t, john),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "newest first",
			path:     "/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, jane, john, prof, admin),
		},
		{
			name:     "search",
			path:     "/users?search=DOE",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, jane, john),
		},
		{
			name:     "search by email",
			path:     "/users?search=zed@",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, prof),
		},
		{
			name:     "filter by role",
			path:     "/users?role=admin&role=professor",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, prof, admin),
		},
		{
			name:     "order by name",
			path:     "/users?ordering=name",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, jane, john, prof),
		},
		{
			name:     "unknown ordering fields are ignored",
			path:     "/users?ordering=-password_hash,-email",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, prof, john, jane, admin),
		},
		{
			name:     "no match",
			path:     "/users?search=nobody",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserStats(t *testing.T) {
	resetDB(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@example.com", user.RoleAdmin)
	prof := testutil.CreateUser(t, usrRepo, "Prof", "prof@example.com", user.RoleProfessor)
	testutil.CreateUser(t, usrRepo, "John", "john@example.com", user.RoleStudent)
	testutil.CreateUser(t, usrRepo, "Jane", "jane@example.com", user.RoleStudent)

	tests := []httpTest{
		{
			name:     "professors are forbidden",
			token:    getToken(t, prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "counts per role",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.RoleCounts{Total: 4, Admin: 1, Professor: 1, Student: 2}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/users/stats", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUpdateRole(t *testing.T) {
	resetDB(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@example.com", user.RoleAdmin)
	prof := testutil.CreateUser(t, usrRepo, "Prof", "prof@example.com", user.RoleProfessor)
	john := testutil.CreateUser(t, usrRepo, "John", "john@example.com", user.RoleStudent)

	adminToken := getToken(t, admin)
	path := func(id string) string { return "/users/" + id + "/role" }

	tests := []httpTest{
		{
			name:     "professors are forbidden",
			path:     path(john.ID),
			body:     []byte(`{"role": "professor"}`),
			token:    getToken(t, prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "self demotion",
			path:     path(admin.ID),
			body:     []byte(`{"role": "student"}`),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "admins cannot change their own role"}),
		},
		{
			name:     "invalid role",
			path:     path(john.ID),
			body:     []byte(`{"role": "dean"}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("role", "role must be one of admin, professor or student")),
		},
		{
			name:     "missing role",
			path:     path(john.ID),
			body:     []byte(`{}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("role", "this field is required")),
		},
		{
			name:     "unknown user",
			path:     path("nope"),
			body:     []byte(`{"role": "professor"}`),
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPatch, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("promote student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, path(john.ID), adminToken, []byte(`{"role": "Professor"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, john.ID, got.ID)
		assert.Equal(t, user.RoleProfessor, got.Role)
	})

	t.Run("role change applies to existing tokens", func(t *testing.T) {
		// john's token still says student
		req, rec := newAuthRequest(http.MethodGet, "/assignments/stats", getToken(t, john))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("admin keeping its role", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, path(admin.ID), adminToken, []byte(`{"role": "admin"}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}
