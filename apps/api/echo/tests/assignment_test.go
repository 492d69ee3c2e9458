package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
	testutil "github.com/trezcool/jifunze/tests"
)

type classroom struct {
	admin, prof, otherProf, john, jane user.User
}

func newClassroom(t *testing.T) classroom {
	t.Helper()
	return classroom{
		admin:     testutil.CreateUser(t, usrRepo, "Admin", "admin@example.com", user.RoleAdmin),
		prof:      testutil.CreateUser(t, usrRepo, "Prof", "prof@example.com", user.RoleProfessor),
		otherProf: testutil.CreateUser(t, usrRepo, "Other Prof", "other@example.com", user.RoleProfessor),
		john:      testutil.CreateUser(t, usrRepo, "John", "john@example.com", user.RoleStudent),
		jane:      testutil.CreateUser(t, usrRepo, "Jane", "jane@example.com", user.RoleStudent),
	}
}

func submission(student user.User, content string) assignment.Submission {
	return assignment.Submission{Student: student.ID, Content: content, SubmittedAt: time.Now().UTC()}
}

func TestAssignmentCreate(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	due := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)
	valid := marchallObj(t, assignment.NewAssignment{Title: " Essay ", Description: "Write an essay", DueDate: due})

	tests := []httpTest{
		{
			name:     "unauthenticated",
			body:     valid,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students are forbidden",
			body:     valid,
			token:    getToken(t, c.john),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldsErr(map[string]string{
				"title":       "this field is required",
				"description": "this field is required",
				"due_date":    "this field is required",
			})),
		},
		{
			name:     "blank title",
			body:     marchallObj(t, assignment.NewAssignment{Title: "   ", Description: "Write", DueDate: due}),
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("title", "this field is required")),
		},
		{
			name:     "due date too far in the past",
			body:     marchallObj(t, assignment.NewAssignment{Title: "Essay", Description: "Write", DueDate: time.Now().Add(-48 * time.Hour)}),
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("due_date", "due date cannot be more than 24 hours in the past")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/assignments", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, creator := range []user.User{c.prof, c.admin} {
		t.Run("created by "+string(creator.Role), func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/assignments", getToken(t, creator), valid)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var got assignment.View
			decode(t, rec, &got)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "Essay", got.Title)
			assert.Equal(t, creator.ID, got.CreatedBy)
			assert.True(t, due.Equal(got.DueDate))
			assert.Empty(t, got.Submissions)
			assert.False(t, got.IsOverdue)
			require.NotNil(t, got.Creator)
			assert.Equal(t, creator.Email, got.Creator.Email)

			_, err := asgRepo.GetAssignment(context.Background(), got.ID)
			assert.NoError(t, err)
		})
	}
}

func TestAssignmentQuery(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	now := time.Now()

	essay := testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", now.Add(48*time.Hour),
		submission(c.john, "john's essay"), submission(c.jane, "jane's essay"))
	time.Sleep(time.Millisecond)
	quiz := testutil.CreateAssignment(t, asgRepo, c.prof, "Quiz", now.Add(-time.Hour))
	time.Sleep(time.Millisecond)
	lab := testutil.CreateAssignment(t, asgRepo, c.otherProf, "Lab", now.Add(24*time.Hour))

	page := func(viewer user.User, pg, limit int, total int64, items ...assignment.Assignment) []byte {
		creators := map[string]user.User{c.prof.ID: c.prof, c.otherProf.ID: c.otherProf}
		views := make([]assignment.View, 0, len(items))
		for _, a := range items {
			views = append(views, viewOf(a, creators[a.CreatedBy], viewer))
		}
		pages := total / int64(limit)
		if total%int64(limit) != 0 {
			pages++
		}
		return marchallObj(t, assignment.Page{
			Assignments: views,
			Pagination:  assignment.Pagination{Page: pg, Limit: limit, Total: total, Pages: pages},
		})
	}

	tests := []httpTest{
		{
			name:     "unauthenticated",
			path:     "/assignments",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "admins see everything, newest first",
			path:     "/assignments",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: page(c.admin, 1, 10, 3, lab, quiz, essay),
		},
		{
			name:     "professors see their own",
			path:     "/assignments",
			token:    getToken(t, c.prof),
			wantCode: http.StatusOK,
			wantData: page(c.prof, 1, 10, 2, quiz, essay),
		},
		{
			name:     "students only see their own submission",
			path:     "/assignments?ordering=title",
			token:    getToken(t, c.john),
			wantCode: http.StatusOK,
			wantData: page(c.john, 1, 10, 3, essay, lab, quiz),
		},
		{
			name:     "upcoming",
			path:     "/assignments?status=upcoming&ordering=due_date",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: page(c.admin, 1, 10, 2, lab, essay),
		},
		{
			name:     "overdue",
			path:     "/assignments?status=OVERDUE",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: page(c.admin, 1, 10, 1, quiz),
		},
		{
			name:     "pagination",
			path:     "/assignments?page=2&limit=2",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: page(c.admin, 2, 2, 3, essay),
		},
		{
			name:     "page past the end",
			path:     "/assignments?page=5&limit=2",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: page(c.admin, 5, 2, 3),
		},
		{
			name:     "invalid status",
			path:     "/assignments?status=late",
			token:    getToken(t, c.admin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("status", "status must be one of all, upcoming or overdue")),
		},
		{
			name:     "invalid page",
			path:     "/assignments?page=two",
			token:    getToken(t, c.admin),
			wantCode: http.StatusBadRequest,
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

func TestAssignmentRetrieve(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	essay := testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", time.Now().Add(48*time.Hour),
		submission(c.john, "john's essay"), submission(c.jane, "jane's essay"))
	path := "/assignments/" + essay.ID

	tests := []httpTest{
		{
			name:     "not found",
			path:     "/assignments/nope",
			token:    getToken(t, c.admin),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name:     "another professor",
			path:     path,
			token:    getToken(t, c.otherProf),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you can only access your own assignments"}),
		},
		{
			name:     "owner",
			path:     path,
			token:    getToken(t, c.prof),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, viewOf(essay, c.prof, c.prof)),
		},
		{
			name:     "admin",
			path:     path,
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, viewOf(essay, c.prof, c.admin)),
		},
		{
			name:     "student",
			path:     path,
			token:    getToken(t, c.jane),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, viewOf(essay, c.prof, c.jane)),
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

func TestAssignmentUpdate(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	essay := testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", time.Now().Add(48*time.Hour))
	late := testutil.CreateAssignment(t, asgRepo, c.prof, "Late", time.Now().Add(-72*time.Hour))
	path := "/assignments/" + essay.ID

	tests := []httpTest{
		{
			name:     "students are forbidden",
			path:     path,
			body:     []byte(`{"title": "Mine"}`),
			token:    getToken(t, c.john),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "another professor",
			path:     path,
			body:     []byte(`{"title": "Mine"}`),
			token:    getToken(t, c.otherProf),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you can only access your own assignments"}),
		},
		{
			name:     "not found",
			path:     "/assignments/nope",
			body:     []byte(`{"title": "Mine"}`),
			token:    getToken(t, c.admin),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name:     "blank title",
			path:     path,
			body:     []byte(`{"title": "  "}`),
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("title", "this field cannot be blank")),
		},
		{
			name:     "due date moved to the past",
			path:     path,
			body:     marchallObj(t, map[string]interface{}{"due_date": time.Now().Add(-48 * time.Hour)}),
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("due_date", "due date cannot be more than 24 hours in the past")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("partial update by the owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, c.prof), []byte(`{"title": " Long essay "}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got assignment.View
		decode(t, rec, &got)
		assert.Equal(t, "Long essay", got.Title)
		assert.Equal(t, essay.Description, got.Description)
		assert.True(t, essay.DueDate.Equal(got.DueDate))
		assert.True(t, got.UpdatedAt.After(essay.UpdatedAt))
	})

	t.Run("overdue assignment keeps its due date", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/assignments/"+late.ID, getToken(t, c.admin), []byte(`{"description": "Rewritten"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got assignment.View
		decode(t, rec, &got)
		assert.Equal(t, "Rewritten", got.Description)
		assert.True(t, got.IsOverdue)
	})
}

func TestAssignmentDelete(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	due := time.Now().Add(48 * time.Hour)
	essay := testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", due)
	quiz := testutil.CreateAssignment(t, asgRepo, c.prof, "Quiz", due, submission(c.john, "answers"))
	lab := testutil.CreateAssignment(t, asgRepo, c.otherProf, "Lab", due)

	tests := []httpTest{
		{
			name:     "students are forbidden",
			path:     "/assignments/" + essay.ID,
			token:    getToken(t, c.john),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "another professor",
			path:     "/assignments/" + lab.ID,
			token:    getToken(t, c.prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you can only access your own assignments"}),
		},
		{
			name:     "with submissions",
			path:     "/assignments/" + quiz.ID,
			token:    getToken(t, c.prof),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "cannot delete an assignment that has submissions"}),
		},
		{
			name:     "owner",
			path:     "/assignments/" + essay.ID,
			token:    getToken(t, c.prof),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "already deleted",
			path:     "/assignments/" + essay.ID,
			token:    getToken(t, c.prof),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name:     "admin",
			path:     "/assignments/" + lab.ID,
			token:    getToken(t, c.admin),
			wantCode: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	_, err := asgRepo.GetAssignment(context.Background(), quiz.ID)
	assert.NoError(t, err)
}

func TestAssignmentSubmit(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	essay := testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", time.Now().Add(48*time.Hour))
	quiz := testutil.CreateAssignment(t, asgRepo, c.prof, "Quiz", time.Now().Add(-time.Hour))
	path := func(a assignment.Assignment) string { return "/assignments/" + a.ID + "/submit" }
	answer := []byte(`{"content": "my answer", "file_url": "https://files.test/answer.pdf"}`)

	t.Run("student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(essay), getToken(t, c.john), answer)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got assignment.Submission
		decode(t, rec, &got)
		assert.Equal(t, c.john.ID, got.Student)
		assert.Equal(t, "my answer", got.Content)
		assert.Equal(t, "https://files.test/answer.pdf", got.FileURL)
		assert.WithinDuration(t, time.Now(), got.SubmittedAt, time.Minute)
	})

	tests := []httpTest{
		{
			name:     "professors are forbidden",
			path:     path(essay),
			body:     answer,
			token:    getToken(t, c.prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "admins are forbidden",
			path:     path(essay),
			body:     answer,
			token:    getToken(t, c.admin),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "twice",
			path:     path(essay),
			body:     answer,
			token:    getToken(t, c.john),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "you have already submitted this assignment"}),
		},
		{
			name:     "overdue",
			path:     path(quiz),
			body:     answer,
			token:    getToken(t, c.jane),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "the due date for this assignment has passed"}),
		},
		{
			name:     "not found",
			path:     "/assignments/nope/submit",
			body:     answer,
			token:    getToken(t, c.jane),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name:     "empty content",
			path:     path(essay),
			body:     []byte(`{"content": " "}`),
			token:    getToken(t, c.jane),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("content", "this field is required")),
		},
		{
			name:     "invalid file url",
			path:     path(essay),
			body:     []byte(`{"content": "mine", "file_url": "ftp://files.test/x"}`),
			token:    getToken(t, c.jane),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	a, err := asgRepo.GetAssignment(context.Background(), essay.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.SubmissionCount())
	assert.True(t, a.HasSubmissionFrom(c.john.ID))
}

func TestAssignmentStats(t *testing.T) {
	resetDB(t)
	c := newClassroom(t)
	now := time.Now()
	testutil.CreateAssignment(t, asgRepo, c.prof, "Essay", now.Add(48*time.Hour),
		submission(c.john, "a"), submission(c.jane, "b"))
	testutil.CreateAssignment(t, asgRepo, c.prof, "Quiz", now.Add(-time.Hour), submission(c.john, "c"))
	testutil.CreateAssignment(t, asgRepo, c.prof, "Exam", now.Add(-2*time.Hour))
	testutil.CreateAssignment(t, asgRepo, c.otherProf, "Lab", now.Add(24*time.Hour))

	tests := []httpTest{
		{
			name:     "students are forbidden",
			token:    getToken(t, c.john),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "professor",
			token:    getToken(t, c.prof),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, assignment.Stats{
				TotalAssignments:    3,
				UpcomingAssignments: 1,
				OverdueAssignments:  2,
				TotalSubmissions:    3,
				AverageSubmissions:  1,
			}),
		},
		{
			name:     "admin",
			token:    getToken(t, c.admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, assignment.Stats{
				TotalAssignments:    4,
				UpcomingAssignments: 2,
				OverdueAssignments:  2,
				TotalSubmissions:    3,
				AverageSubmissions:  0.75,
			}),
		},
		{
			name:     "professor without assignments",
			token:    getToken(t, testutil.CreateUser(t, usrRepo, "New Prof", "new@example.com", user.RoleProfessor)),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, assignment.Stats{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/assignments/stats", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
