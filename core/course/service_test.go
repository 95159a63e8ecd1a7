package course_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

var ctx = context.Background()

func newTestService(t *testing.T) course.ServiceInterface {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	return course.NewService(dummydb.NewCourseRepository(db))
}

func newUser(role string) *user.User {
	return &user.User{ID: uuid.New().String(), Role: role}
}

func createCourse(t *testing.T, svc course.ServiceInterface, actor *user.User, title string) course.Course {
	t.Helper()
	crs, err := svc.CreateCourse(ctx, actor, course.NewCourse{Title: title})
	require.NoError(t, err)
	return crs
}

func TestService_CreateCourse(t *testing.T) {
	svc := newTestService(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	t.Run("teacher becomes instructor", func(t *testing.T) {
		crs := createCourse(t, svc, teacher, "Algebra I")
		assert.Equal(t, teacher.ID, crs.InstructorID)
		assert.Equal(t, course.StatusActive, crs.Status)
	})
	t.Run("student denied", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, student, course.NewCourse{Title: "Nope"})
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("anonymous denied", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, nil, course.NewCourse{Title: "Nope"})
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestService_CourseVisibility(t *testing.T) {
	svc := newTestService(t)
	admin := newUser(user.RoleAdmin)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	c1 := createCourse(t, svc, t1, "Algebra I")
	c2 := createCourse(t, svc, t2, "Biology")

	t.Run("admin sees all", func(t *testing.T) {
		courses, err := svc.QueryCourses(ctx, admin, nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 2)
	})
	t.Run("teacher sees own only", func(t *testing.T) {
		courses, err := svc.QueryCourses(ctx, t1, nil, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, c1.ID, courses[0].ID)

		_, err = svc.GetCourse(ctx, t1, c2.ID)
		assert.Equal(t, course.ErrCourseNotFound, err)
	})
	t.Run("student and anonymous get public view", func(t *testing.T) {
		courses, err := svc.QueryCourses(ctx, student, nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 2)

		courses, err = svc.QueryCourses(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 2)
	})
	t.Run("caller filter only narrows", func(t *testing.T) {
		courses, err := svc.QueryCourses(ctx, t1, &course.CourseQueryFilter{InstructorID: t2.ID}, nil)
		require.NoError(t, err)
		assert.Empty(t, courses)
	})
	t.Run("malformed filter id dropped", func(t *testing.T) {
		courses, err := svc.QueryCourses(ctx, admin, &course.CourseQueryFilter{InstructorID: "not-a-uuid"}, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 2)
	})
}

func TestService_UpdateCourse(t *testing.T) {
	svc := newTestService(t)
	admin := newUser(user.RoleAdmin)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	crs := createCourse(t, svc, t1, "Algebra I")

	t.Run("owner updates", func(t *testing.T) {
		updated, err := svc.UpdateCourse(ctx, t1, crs.ID, course.UpdateCourse{Title: "Algebra II"})
		require.NoError(t, err)
		assert.Equal(t, "Algebra II", updated.Title)
	})
	t.Run("other teacher cannot see it", func(t *testing.T) {
		_, err := svc.UpdateCourse(ctx, t2, crs.ID, course.UpdateCourse{Title: "Hijack"})
		assert.Equal(t, course.ErrCourseNotFound, err)
	})
	t.Run("student denied", func(t *testing.T) {
		_, err := svc.UpdateCourse(ctx, student, crs.ID, course.UpdateCourse{Title: "Hijack"})
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("admin reassigns instructor", func(t *testing.T) {
		updated, err := svc.UpdateCourse(ctx, admin, crs.ID, course.UpdateCourse{InstructorID: t2.ID})
		require.NoError(t, err)
		assert.Equal(t, t2.ID, updated.InstructorID)
	})
}

func TestService_Enroll(t *testing.T) {
	svc := newTestService(t)
	teacher := newUser(user.RoleTeacher)
	s1 := newUser(user.RoleStudent)
	s2 := newUser(user.RoleStudent)

	crs := createCourse(t, svc, teacher, "Algebra I")

	t.Run("enrollment bumps counter", func(t *testing.T) {
		enr, err := svc.Enroll(ctx, s1, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, course.EnrollmentActive, enr.Status)
		assert.Equal(t, s1.ID, enr.StudentID)

		got, err := svc.GetCourse(ctx, s1, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.TotalEnrollments)
	})
	t.Run("re-enrollment returns existing row", func(t *testing.T) {
		first, err := svc.Enroll(ctx, s1, crs.ID)
		require.NoError(t, err)
		again, err := svc.Enroll(ctx, s1, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		got, err := svc.GetCourse(ctx, s1, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.TotalEnrollments)
	})
	t.Run("withdraw recomputes counter", func(t *testing.T) {
		enr, err := svc.Enroll(ctx, s2, crs.ID)
		require.NoError(t, err)
		got, err := svc.GetCourse(ctx, s2, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalEnrollments)

		require.NoError(t, svc.Withdraw(ctx, s2, enr.ID))
		got, err = svc.GetCourse(ctx, s2, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.TotalEnrollments)
	})
	t.Run("anonymous cannot enroll", func(t *testing.T) {
		_, err := svc.Enroll(ctx, nil, crs.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("unknown course", func(t *testing.T) {
		_, err := svc.Enroll(ctx, s1, uuid.New().String())
		assert.Equal(t, course.ErrCourseNotFound, err)
	})
}

func TestService_EnrollmentVisibility(t *testing.T) {
	svc := newTestService(t)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	s1 := newUser(user.RoleStudent)
	s2 := newUser(user.RoleStudent)

	c1 := createCourse(t, svc, t1, "Algebra I")
	c2 := createCourse(t, svc, t2, "Biology")

	e1, err := svc.Enroll(ctx, s1, c1.ID)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, s2, c2.ID)
	require.NoError(t, err)

	t.Run("student sees own enrollments only", func(t *testing.T) {
		enrs, err := svc.QueryEnrollments(ctx, s1, nil, nil)
		require.NoError(t, err)
		require.Len(t, enrs, 1)
		assert.Equal(t, e1.ID, enrs[0].ID)
	})
	t.Run("teacher sees enrollments of own courses", func(t *testing.T) {
		enrs, err := svc.QueryEnrollments(ctx, t1, nil, nil)
		require.NoError(t, err)
		require.Len(t, enrs, 1)
		assert.Equal(t, c1.ID, enrs[0].CourseID)
	})
	t.Run("foreign enrollment hidden from student", func(t *testing.T) {
		_, err := svc.GetEnrollment(ctx, s2, e1.ID)
		assert.Equal(t, course.ErrEnrollmentNotFound, err)

		err = svc.Withdraw(ctx, s2, e1.ID)
		assert.Equal(t, course.ErrEnrollmentNotFound, err)
	})
	t.Run("course teacher may update status", func(t *testing.T) {
		enr, err := svc.UpdateEnrollment(ctx, t1, e1.ID, course.UpdateEnrollment{Status: course.EnrollmentSuspended})
		require.NoError(t, err)
		assert.Equal(t, course.EnrollmentSuspended, enr.Status)
	})
}

func TestService_SaveProgress(t *testing.T) {
	svc := newTestService(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	crs := createCourse(t, svc, teacher, "Algebra I")
	lec, err := svc.CreateLecture(ctx, teacher, course.NewLecture{CourseID: crs.ID, Title: "Intro"})
	require.NoError(t, err)

	prg, err := svc.SaveProgress(ctx, student, course.SaveProgress{LectureID: lec.ID, Status: course.ProgressInProgress, WatchTimeMinutes: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, prg.WatchTimeMinutes)
	assert.Nil(t, prg.CompletedAt)

	t.Run("upsert keeps one row and max watch time", func(t *testing.T) {
		again, err := svc.SaveProgress(ctx, student, course.SaveProgress{LectureID: lec.ID, Status: course.ProgressCompleted, WatchTimeMinutes: 5})
		require.NoError(t, err)
		assert.Equal(t, prg.ID, again.ID)
		assert.Equal(t, 10, again.WatchTimeMinutes)
		assert.Equal(t, course.ProgressCompleted, again.Status)
		assert.NotNil(t, again.CompletedAt)

		all, err := svc.QueryProgress(ctx, student, nil, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestService_SyncCounters(t *testing.T) {
	svc := newTestService(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	crs := createCourse(t, svc, teacher, "Algebra I")
	_, err := svc.CreateLecture(ctx, teacher, course.NewLecture{CourseID: crs.ID, Title: "Intro"})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, student, crs.ID)
	require.NoError(t, err)

	// creating a lecture does not sync total_lectures; the sweep does
	got, err := svc.GetCourse(ctx, teacher, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalLectures)

	fixed, err := svc.SyncCounters(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	got, err = svc.GetCourse(ctx, teacher, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalLectures)
	assert.Equal(t, 1, got.TotalEnrollments)

	t.Run("idempotent", func(t *testing.T) {
		fixed, err := svc.SyncCounters(ctx, "")
		require.NoError(t, err)
		assert.Zero(t, fixed)
	})
}
