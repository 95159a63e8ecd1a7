// Package access decides what a requesting user may see or mutate.
//
// Every entity type registers a Rule in the table below at compile time;
// rule selection never inspects entity values at runtime. Visibility is
// expressed as a Scope that repositories translate into query constraints,
// so a caller-supplied filter can only ever narrow an already-scoped set.
package access

import (
	"errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type Entity string

const (
	EntityUser                 Entity = "user"
	EntityCourse               Entity = "course"
	EntityLecture              Entity = "lecture"
	EntityEnrollment           Entity = "enrollment"
	EntityLectureProgress      Entity = "lecture_progress"
	EntityAssignment           Entity = "assignment"
	EntityAssignmentSubmission Entity = "assignment_submission"
	EntityTest                 Entity = "test"
	EntityQuestion             Entity = "question"
	EntityTestSubmission       Entity = "test_submission"
	EntityTestAnswer           Entity = "test_answer"
	EntityLibraryItem          Entity = "library_item"
	EntityLibraryFavorite      Entity = "library_favorite"
	EntityAnnouncement         Entity = "announcement"
)

// Owner names the attribute that marks teacher ownership on an entity type.
type Owner int

const (
	OwnerNone Owner = iota
	OwnerInstructor
	OwnerCreatedBy
	OwnerUploadedBy
)

// WritePolicy is the role gate for unsafe operations on an entity type.
// Admins always pass regardless of policy.
type WritePolicy int

const (
	WriteAdmin WritePolicy = iota
	WriteTeacherOrAdmin
	WriteStudent
	WriteAuthenticated
)

type Rule struct {
	// Owner is the direct teacher-ownership attribute, if any.
	Owner Owner
	// ViaCourse scopes teachers transitively through the parent course's
	// instructor (enrollments, progress, submissions, questions, answers).
	// It takes precedence over Owner.
	ViaCourse bool
	// HasStudent marks entity types carrying a student attribute
	// (directly or through their submission).
	HasStudent bool
	// HasUser marks entity types carrying a generic user attribute
	// (favorites, profiles, settings).
	HasUser bool

	Write WritePolicy
}

var rules = map[Entity]Rule{
	EntityUser:                 {Write: WriteAdmin},
	EntityCourse:               {Owner: OwnerInstructor, Write: WriteTeacherOrAdmin},
	EntityLecture:              {ViaCourse: true, Write: WriteTeacherOrAdmin},
	EntityEnrollment:           {ViaCourse: true, HasStudent: true, Write: WriteAuthenticated},
	EntityLectureProgress:      {ViaCourse: true, HasStudent: true, Write: WriteAuthenticated},
	EntityAssignment:           {Owner: OwnerCreatedBy, Write: WriteTeacherOrAdmin},
	EntityAssignmentSubmission: {ViaCourse: true, HasStudent: true, Write: WriteStudent},
	EntityTest:                 {Owner: OwnerCreatedBy, Write: WriteTeacherOrAdmin},
	EntityQuestion:             {ViaCourse: true, Write: WriteTeacherOrAdmin},
	EntityTestSubmission:       {ViaCourse: true, HasStudent: true, Write: WriteStudent},
	EntityTestAnswer:           {ViaCourse: true, HasStudent: true, Write: WriteAuthenticated},
	EntityLibraryItem:          {Owner: OwnerUploadedBy, Write: WriteTeacherOrAdmin},
	EntityLibraryFavorite:      {HasUser: true, Write: WriteAuthenticated},
	EntityAnnouncement:         {Owner: OwnerCreatedBy, Write: WriteTeacherOrAdmin},
}

// RuleFor returns the registered rule for an entity type.
func RuleFor(e Entity) (Rule, bool) {
	r, ok := rules[e]
	return r, ok
}

// Scope is the visibility constraint for one (user, entity type) pair.
// At most one restriction field is set; repositories AND it with any
// caller-supplied narrowing filters. The zero Scope exposes nothing.
type Scope struct {
	All                bool
	InstructorID       string // rows where instructor = id
	CreatedByID        string // rows where created_by = id
	UploadedByID       string // rows where uploaded_by = id
	CourseInstructorID string // rows whose parent course's instructor = id
	StudentID          string // rows where student = id
	UserID             string // rows where user = id
}

// Resolve computes the visible scope of an entity type for a user.
//
// Precedence: relationship rule (ViaCourse) > ownership attribute >
// generic user attribute > unrestricted default. A nil user gets the
// public default view; writes are gated separately.
func Resolve(usr *user.User, e Entity) Scope {
	r := rules[e]

	if usr == nil {
		// no public view for rows tied to a person
		if r.HasStudent || r.HasUser {
			return Scope{}
		}
		return Scope{All: true}
	}
	if usr.IsAdmin() {
		return Scope{All: true}
	}

	if usr.IsTeacher() {
		if r.ViaCourse {
			return Scope{CourseInstructorID: usr.ID}
		}
		switch r.Owner {
		case OwnerInstructor:
			return Scope{InstructorID: usr.ID}
		case OwnerCreatedBy:
			return Scope{CreatedByID: usr.ID}
		case OwnerUploadedBy:
			return Scope{UploadedByID: usr.ID}
		}
		if r.HasUser {
			return Scope{UserID: usr.ID}
		}
		return Scope{All: true}
	}

	// student
	if r.HasStudent {
		return Scope{StudentID: usr.ID}
	}
	if r.HasUser {
		return Scope{UserID: usr.ID}
	}
	return Scope{All: true}
}

var (
	// ErrDenied is returned when the instance is visible in principle
	// but the user may not mutate it.
	ErrDenied = core.NewPermissionError("permission denied")
	// ErrHidden is returned when the instance is not visible to the user
	// at all; handlers report it as not-found.
	ErrHidden = errors.New("not found")
)

// CanCreate gates creation of an entity type by role.
func CanCreate(usr *user.User, e Entity) error {
	if usr == nil {
		return ErrDenied
	}
	if usr.IsAdmin() {
		return nil
	}
	if roleAllowed(rules[e].Write, usr) {
		return nil
	}
	return ErrDenied
}

// CanMutate is the object-level gate for unsafe operations.
// ownerID is the effective owner for the requesting role: the row's
// teacher-ownership attribute for teachers, the row's student/user for
// students. Callers resolve it before asking.
func CanMutate(usr *user.User, e Entity, ownerID string) error {
	if usr == nil {
		return ErrDenied
	}
	if usr.IsAdmin() {
		return nil
	}
	if !roleAllowed(rules[e].Write, usr) {
		return ErrDenied
	}
	if ownerID != "" && ownerID == usr.ID {
		return nil
	}
	// Not the owner: a publicly readable type yields an explicit denial,
	// an invisible instance stays hidden.
	if Resolve(usr, e).All {
		return ErrDenied
	}
	return ErrHidden
}

func roleAllowed(w WritePolicy, usr *user.User) bool {
	switch w {
	case WriteTeacherOrAdmin:
		return usr.IsTeacher()
	case WriteStudent:
		return usr.IsStudent()
	case WriteAuthenticated:
		return true
	default: // WriteAdmin
		return false
	}
}

type Attributed struct {
	CreatedByID  string
	UploadedByID string
	InstructorID string
}

// Attribution returns the ownership attributes to stamp on a new row of
// an entity type: created_by and uploaded_by follow the creator, instructor
// only when the creator is a teacher. The caller cannot attribute a row to
// another user.
func Attribution(usr *user.User, e Entity) Attributed {
	if usr == nil {
		return Attributed{}
	}
	var at Attributed
	switch rules[e].Owner {
	case OwnerCreatedBy:
		at.CreatedByID = usr.ID
	case OwnerUploadedBy:
		at.UploadedByID = usr.ID
	case OwnerInstructor:
		if usr.IsTeacher() {
			at.InstructorID = usr.ID
		}
	}
	return at
}
