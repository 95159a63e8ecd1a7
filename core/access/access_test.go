package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	admin   = &user.User{ID: "admin-id", Role: user.RoleAdmin}
	teacher = &user.User{ID: "teacher-id", Role: user.RoleTeacher}
	student = &user.User{ID: "student-id", Role: user.RoleStudent}
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		usr    *user.User
		entity Entity
		want   Scope
	}{
		{"nil user gets public view", nil, EntityCourse, Scope{All: true}},
		{"nil user sees no personal rows", nil, EntityTestSubmission, Scope{}},
		{"nil user sees no favorites", nil, EntityLibraryFavorite, Scope{}},
		{"admin unrestricted", admin, EntityTestSubmission, Scope{All: true}},

		{"teacher courses by instructor", teacher, EntityCourse, Scope{InstructorID: teacher.ID}},
		{"teacher tests by created_by", teacher, EntityTest, Scope{CreatedByID: teacher.ID}},
		{"teacher library by uploaded_by", teacher, EntityLibraryItem, Scope{UploadedByID: teacher.ID}},
		{"teacher enrollments via course", teacher, EntityEnrollment, Scope{CourseInstructorID: teacher.ID}},
		{"teacher submissions via course", teacher, EntityTestSubmission, Scope{CourseInstructorID: teacher.ID}},
		{"via course wins over student attr", teacher, EntityLectureProgress, Scope{CourseInstructorID: teacher.ID}},
		{"teacher favorites by user", teacher, EntityLibraryFavorite, Scope{UserID: teacher.ID}},
		{"teacher announcements by created_by", teacher, EntityAnnouncement, Scope{CreatedByID: teacher.ID}},

		{"student submissions by student", student, EntityTestSubmission, Scope{StudentID: student.ID}},
		{"student enrollments by student", student, EntityEnrollment, Scope{StudentID: student.ID}},
		{"student favorites by user", student, EntityLibraryFavorite, Scope{UserID: student.ID}},
		{"student courses unrestricted", student, EntityCourse, Scope{All: true}},
		{"student lectures unrestricted", student, EntityLecture, Scope{All: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.usr, tt.entity))
		})
	}
}

func TestCanCreate(t *testing.T) {
	tests := []struct {
		name    string
		usr     *user.User
		entity  Entity
		wantErr error
	}{
		{"anonymous denied", nil, EntityEnrollment, ErrDenied},
		{"admin always allowed", admin, EntityUser, nil},
		{"teacher creates course", teacher, EntityCourse, nil},
		{"student cannot create course", student, EntityCourse, ErrDenied},
		{"student submits test", student, EntityTestSubmission, nil},
		{"teacher cannot submit test", teacher, EntityTestSubmission, ErrDenied},
		{"student enrolls", student, EntityEnrollment, nil},
		{"teacher cannot manage users", teacher, EntityUser, ErrDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanCreate(tt.usr, tt.entity)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantErr, err)
			}
		})
	}
}

func TestCanMutate(t *testing.T) {
	other := &user.User{ID: "other-teacher", Role: user.RoleTeacher}

	t.Run("anonymous denied", func(t *testing.T) {
		err := CanMutate(nil, EntityCourse, teacher.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("admin bypasses ownership", func(t *testing.T) {
		assert.NoError(t, CanMutate(admin, EntityCourse, teacher.ID))
	})
	t.Run("owner allowed", func(t *testing.T) {
		assert.NoError(t, CanMutate(teacher, EntityCourse, teacher.ID))
	})
	t.Run("non-owner denied on public type", func(t *testing.T) {
		// courses are publicly listable, so the denial is explicit
		err := CanMutate(other, EntityCourse, teacher.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("non-owner hidden on scoped type", func(t *testing.T) {
		err := CanMutate(student, EntityTestSubmission, "someone-else")
		assert.Equal(t, ErrHidden, err)
	})
	t.Run("role gate before ownership", func(t *testing.T) {
		// owning the row does not help when the role cannot write the type
		err := CanMutate(teacher, EntityTestSubmission, teacher.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
	t.Run("student mutates own submission", func(t *testing.T) {
		assert.NoError(t, CanMutate(student, EntityTestSubmission, student.ID))
	})
}

func TestAttribution(t *testing.T) {
	assert.Equal(t, Attributed{InstructorID: teacher.ID}, Attribution(teacher, EntityCourse))
	assert.Equal(t, Attributed{CreatedByID: teacher.ID}, Attribution(teacher, EntityTest))
	assert.Equal(t, Attributed{UploadedByID: admin.ID}, Attribution(admin, EntityLibraryItem))
	assert.Equal(t, Attributed{}, Attribution(admin, EntityCourse)) // instructor set explicitly
	assert.Equal(t, Attributed{}, Attribution(nil, EntityCourse))
}
