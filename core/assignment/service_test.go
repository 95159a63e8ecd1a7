package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

var ctx = context.Background()

type testEnv struct {
	svc       assignment.ServiceInterface
	courseSvc course.ServiceInterface
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	return testEnv{
		svc:       assignment.NewService(dummydb.NewAssignmentRepository(db)),
		courseSvc: course.NewService(dummydb.NewCourseRepository(db)),
	}
}

func newUser(role string) *user.User {
	return &user.User{ID: uuid.New().String(), Role: role}
}

func (env testEnv) createAssignment(t *testing.T, actor *user.User, na assignment.NewAssignment) assignment.Assignment {
	t.Helper()
	if na.CourseID == "" {
		crs, err := env.courseSvc.CreateCourse(ctx, actor, course.NewCourse{Title: "Algebra I"})
		require.NoError(t, err)
		na.CourseID = crs.ID
	}
	if na.Title == "" {
		na.Title = "Homework 1"
	}
	asg, err := env.svc.Create(ctx, actor, na)
	require.NoError(t, err)
	return asg
}

func TestService_OverdueStateMachine(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	t.Run("past due flips on save", func(t *testing.T) {
		asg := env.createAssignment(t, teacher, assignment.NewAssignment{DueDate: &past, TotalMarks: 20})
		assert.Equal(t, assignment.StatusOverdue, asg.Status)
	})
	t.Run("future due stays active", func(t *testing.T) {
		asg := env.createAssignment(t, teacher, assignment.NewAssignment{DueDate: &future, TotalMarks: 20})
		assert.Equal(t, assignment.StatusActive, asg.Status)
	})
	t.Run("no due date stays active", func(t *testing.T) {
		asg := env.createAssignment(t, teacher, assignment.NewAssignment{TotalMarks: 20})
		assert.Equal(t, assignment.StatusActive, asg.Status)
	})
	t.Run("overdue is monotonic", func(t *testing.T) {
		asg := env.createAssignment(t, teacher, assignment.NewAssignment{DueDate: &past, TotalMarks: 20})
		require.Equal(t, assignment.StatusOverdue, asg.Status)

		// moving the due date forward does not resurrect it
		updated, err := env.svc.Update(ctx, teacher, asg.ID, assignment.UpdateAssignment{DueDate: &future})
		require.NoError(t, err)
		assert.Equal(t, assignment.StatusOverdue, updated.Status)
	})
}

func TestService_SweepOverdue(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)

	due := time.Now().UTC().Add(50 * time.Millisecond)
	asg := env.createAssignment(t, teacher, assignment.NewAssignment{DueDate: &due, TotalMarks: 20})
	require.Equal(t, assignment.StatusActive, asg.Status)
	env.createAssignment(t, teacher, assignment.NewAssignment{TotalMarks: 20}) // no due date

	time.Sleep(60 * time.Millisecond)

	t.Run("dry run reports without writing", func(t *testing.T) {
		changed, err := env.svc.SweepOverdue(ctx, true /* dryRun */)
		require.NoError(t, err)
		require.Len(t, changed, 1)
		assert.Equal(t, asg.ID, changed[0].ID)

		changed, err = env.svc.SweepOverdue(ctx, true /* dryRun */)
		require.NoError(t, err)
		assert.Len(t, changed, 1) // still pending
	})
	t.Run("sweep persists and is idempotent", func(t *testing.T) {
		changed, err := env.svc.SweepOverdue(ctx, false)
		require.NoError(t, err)
		require.Len(t, changed, 1)
		assert.Equal(t, assignment.StatusOverdue, changed[0].Status)

		changed, err = env.svc.SweepOverdue(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, changed)
	})
}

func TestService_Submit(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	asg := env.createAssignment(t, teacher, assignment.NewAssignment{TotalMarks: 20})

	t.Run("teacher cannot submit", func(t *testing.T) {
		_, err := env.svc.Submit(ctx, teacher, assignment.SubmitAssignment{AssignmentID: asg.ID, SubmissionText: "nope"})
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("student submits", func(t *testing.T) {
		sub, err := env.svc.Submit(ctx, student, assignment.SubmitAssignment{AssignmentID: asg.ID, SubmissionText: "my answer"})
		require.NoError(t, err)
		assert.Equal(t, assignment.SubmissionSubmitted, sub.Status)
		assert.Equal(t, student.ID, sub.StudentID)
	})
	t.Run("resubmission updates the same row", func(t *testing.T) {
		first, err := env.svc.Submit(ctx, student, assignment.SubmitAssignment{AssignmentID: asg.ID, SubmissionText: "v1"})
		require.NoError(t, err)
		again, err := env.svc.Submit(ctx, student, assignment.SubmitAssignment{AssignmentID: asg.ID, SubmissionText: "v2"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "v2", again.SubmissionText)

		subs, err := env.svc.QuerySubmissions(ctx, student, nil, nil)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})
}

func TestService_Grade(t *testing.T) {
	env := newTestEnv(t)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	asg := env.createAssignment(t, t1, assignment.NewAssignment{TotalMarks: 20})
	sub, err := env.svc.Submit(ctx, student, assignment.SubmitAssignment{AssignmentID: asg.ID, SubmissionText: "my answer"})
	require.NoError(t, err)

	t.Run("student cannot grade", func(t *testing.T) {
		_, err := env.svc.Grade(ctx, student, sub.ID, assignment.GradeSubmission{MarksObtained: 20})
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("foreign teacher cannot see the submission", func(t *testing.T) {
		_, err := env.svc.Grade(ctx, t2, sub.ID, assignment.GradeSubmission{MarksObtained: 20})
		assert.Equal(t, assignment.ErrSubmissionNotFound, err)
	})
	t.Run("course teacher grades", func(t *testing.T) {
		graded, err := env.svc.Grade(ctx, t1, sub.ID, assignment.GradeSubmission{MarksObtained: 17, TeacherFeedback: "good work"})
		require.NoError(t, err)
		require.NotNil(t, graded.MarksObtained)
		assert.Equal(t, 17.0, *graded.MarksObtained)
		assert.Equal(t, "A", graded.Grade) // 85%
		assert.Equal(t, t1.ID, graded.GradedByID)
		assert.NotNil(t, graded.GradedAt)
		assert.Equal(t, assignment.SubmissionGraded, graded.Status)
	})
	t.Run("zero total marks grades F", func(t *testing.T) {
		free := env.createAssignment(t, t1, assignment.NewAssignment{CourseID: asg.CourseID, Title: "Ungradable"})
		s, err := env.svc.Submit(ctx, student, assignment.SubmitAssignment{AssignmentID: free.ID, SubmissionText: "hi"})
		require.NoError(t, err)
		graded, err := env.svc.Grade(ctx, t1, s.ID, assignment.GradeSubmission{MarksObtained: 5})
		require.NoError(t, err)
		assert.Equal(t, "F", graded.Grade)
	})
}
