package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func createCourse(t *testing.T, title, instructorID string) course.Course {
	t.Helper()
	crs, err := courseRepo.CreateCourse(ctx(), course.Course{
		Title:        title,
		Status:       course.StatusActive,
		InstructorID: instructorID,
		IsPublished:  true,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func Test_courseApi_queryAndWrite(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, usrRepo, "Other Teacher", "teacher2", "other@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	maths := createCourse(t, "Maths", teacher.ID)
	physics := createCourse(t, "Physics", other.ID)

	tests := []httpTest{
		{
			name: "anonymous read is public", method: http.MethodGet, path: "/v1/courses",
			wantCode: http.StatusOK, wantData: marchallList(t, maths, physics),
		},
		{
			name: "student sees the catalogue", method: http.MethodGet, path: "/v1/courses", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallList(t, maths, physics),
		},
		{
			name: "teacher sees own courses only", method: http.MethodGet, path: "/v1/courses", token: getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marchallList(t, maths),
		},
		{
			name: "anonymous write denied", method: http.MethodPost, path: "/v1/courses",
			body:     marchallObj(t, map[string]string{"title": "Hack"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "student write denied", method: http.MethodPost, path: "/v1/courses", token: getToken(t, student),
			body:     marchallObj(t, map[string]string{"title": "Hack"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "foreign course update is hidden", method: http.MethodPut, path: "/v1/courses/" + physics.ID,
			token:    getToken(t, teacher),
			body:     marchallObj(t, map[string]string{"title": "Hijack"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("teacher creates a course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher),
			marchallObj(t, map[string]interface{}{"title": "Chemistry", "is_published": true}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var crs course.Course
		decodeBody(t, rec, &crs)
		assert.Equal(t, "Chemistry", crs.Title)
		assert.Equal(t, teacher.ID, crs.InstructorID)
	})
}

func Test_courseApi_enroll(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)
	maths := createCourse(t, "Maths", teacher.ID)

	t.Run("anonymous cannot enroll", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/courses/"+maths.ID+"/enroll")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var enr course.Enrollment
	t.Run("student enrolls", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+maths.ID+"/enroll", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec, &enr)
		assert.Equal(t, student.ID, enr.StudentID)
		assert.Equal(t, course.EnrollmentActive, enr.Status)

		crs, err := courseRepo.GetCourse(ctx(), maths.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, crs.TotalEnrollments)
	})

	t.Run("re-enrolling returns the existing row", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+maths.ID+"/enroll", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var again course.Enrollment
		decodeBody(t, rec, &again)
		assert.Equal(t, enr.ID, again.ID)

		crs, err := courseRepo.GetCourse(ctx(), maths.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, crs.TotalEnrollments)
	})

	t.Run("withdraw drops the counter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/enrollments/"+enr.ID, getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		crs, err := courseRepo.GetCourse(ctx(), maths.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, crs.TotalEnrollments)
	})
}

func Test_courseApi_syncCounters(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@school.test", "", user.RoleAdmin, true)
	maths := createCourse(t, "Maths", teacher.ID)

	// lecture creation does not touch the counter; the sweep fixes it
	_, err := courseRepo.CreateLecture(ctx(), course.Lecture{CourseID: maths.ID, Title: "Algebra", OrderIndex: 1})
	require.NoError(t, err)

	t.Run("admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+maths.ID+"/sync-counters", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("sweep fixes lecture drift", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+maths.ID+"/sync-counters", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		crs, err := courseRepo.GetCourse(ctx(), maths.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, crs.TotalLectures)
	})
}
