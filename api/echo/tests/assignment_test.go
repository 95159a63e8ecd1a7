package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func createAssignment(t *testing.T, courseID, createdByID string, totalMarks float64, dueDate *time.Time) assignment.Assignment {
	t.Helper()
	asg, err := assignmentRepo.CreateAssignment(ctx(), assignment.Assignment{
		CourseID:    courseID,
		Title:       "Essay",
		TotalMarks:  totalMarks,
		Status:      assignment.StatusActive,
		DueDate:     dueDate,
		CreatedByID: createdByID,
	})
	if err != nil {
		t.Fatalf("createAssignment() failed: %v", err)
	}
	return asg
}

func Test_assignmentApi_submitAndGrade(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	foreign := testutil.CreateUser(t, usrRepo, "Foreign Teacher", "teacher2", "foreign@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	maths := createCourse(t, "Maths", teacher.ID)
	asg := createAssignment(t, maths.ID, teacher.ID, 20, nil)

	t.Run("teacher cannot submit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions", getToken(t, teacher),
			marchallObj(t, map[string]string{"assignment": asg.ID, "submission_text": "hi"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	var sub assignment.Submission
	t.Run("student submits", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions", getToken(t, student),
			marchallObj(t, map[string]string{"assignment": asg.ID, "submission_text": "My essay."}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decodeBody(t, rec, &sub)
		assert.Equal(t, assignment.SubmissionSubmitted, sub.Status)
		assert.Equal(t, student.ID, sub.StudentID)
	})

	t.Run("resubmission updates the same row", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions", getToken(t, student),
			marchallObj(t, map[string]string{"assignment": asg.ID, "submission_text": "My better essay."}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var again assignment.Submission
		decodeBody(t, rec, &again)
		assert.Equal(t, sub.ID, again.ID)
		assert.Equal(t, "My better essay.", again.SubmissionText)
	})

	t.Run("foreign teacher cannot even see the submission", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions/"+sub.ID+"/grade", getToken(t, foreign),
			marchallObj(t, map[string]interface{}{"marks_obtained": 17}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("course teacher grades", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions/"+sub.ID+"/grade", getToken(t, teacher),
			marchallObj(t, map[string]interface{}{"marks_obtained": 17, "teacher_feedback": "Well done"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var graded assignment.Submission
		decodeBody(t, rec, &graded)
		require.NotNil(t, graded.MarksObtained)
		assert.Equal(t, 17.0, *graded.MarksObtained)
		assert.Equal(t, "A", graded.Grade) // 85%
		assert.Equal(t, assignment.SubmissionGraded, graded.Status)
		assert.Equal(t, teacher.ID, graded.GradedByID)
	})
}

func Test_assignmentApi_sweepOverdue(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@school.test", "", user.RoleAdmin, true)

	maths := createCourse(t, "Maths", teacher.ID)
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	overdue := createAssignment(t, maths.ID, teacher.ID, 20, &past)
	createAssignment(t, maths.ID, teacher.ID, 20, &future)

	t.Run("admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/sweep-overdue", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("dry run reports without persisting", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/sweep-overdue?dry_run=true", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var flipped []assignment.Assignment
		decodeBody(t, rec, &flipped)
		require.Len(t, flipped, 1)
		assert.Equal(t, overdue.ID, flipped[0].ID)

		stored, err := assignmentRepo.GetAssignment(ctx(), overdue.ID)
		require.NoError(t, err)
		assert.Equal(t, assignment.StatusActive, stored.Status)
	})

	t.Run("real sweep persists and is idempotent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/sweep-overdue", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var flipped []assignment.Assignment
		decodeBody(t, rec, &flipped)
		require.Len(t, flipped, 1)

		stored, err := assignmentRepo.GetAssignment(ctx(), overdue.ID)
		require.NoError(t, err)
		assert.Equal(t, assignment.StatusOverdue, stored.Status)

		req, rec = newAuthRequest(http.MethodPost, "/v1/assignments/sweep-overdue", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &flipped)
		assert.Empty(t, flipped)
	})
}
