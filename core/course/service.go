package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrCourseNotFound     = errors.New("course not found")
	ErrLectureNotFound    = errors.New("lecture not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrProgressNotFound   = errors.New("lecture progress not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// QueryCourses applies the scope first, then ANDs available filter fields.
		// CourseQueryFilter.Search does a case-insensitive match on Title or Description.
		QueryCourses(ctx context.Context, scope access.Scope, filter *CourseQueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		SetCourseEnrollmentCount(ctx context.Context, id string, n int) error
		SetCourseLectureCount(ctx context.Context, id string, n int) error
		DeleteCoursesByID(ctx context.Context, ids ...string) error
		CountEnrollments(ctx context.Context, courseID string) (int, error)
		CountLectures(ctx context.Context, courseID string) (int, error)

		CreateLecture(ctx context.Context, lec Lecture) (Lecture, error)
		QueryLectures(ctx context.Context, scope access.Scope, filter *LectureQueryFilter, ordering []core.DBOrdering) ([]Lecture, error)
		GetLecture(ctx context.Context, id string) (Lecture, error)
		UpdateLecture(ctx context.Context, lec Lecture) (Lecture, error)
		DeleteLecturesByID(ctx context.Context, ids ...string) error

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, scope access.Scope, filter *EnrollmentQueryFilter, ordering []core.DBOrdering) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		GetEnrollmentForStudent(ctx context.Context, courseID, studentID string) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		DeleteEnrollmentsByID(ctx context.Context, ids ...string) error

		CreateProgress(ctx context.Context, prg LectureProgress) (LectureProgress, error)
		QueryProgress(ctx context.Context, scope access.Scope, filter *ProgressQueryFilter, ordering []core.DBOrdering) ([]LectureProgress, error)
		GetProgressForStudent(ctx context.Context, lectureID, studentID string) (LectureProgress, error)
		UpdateProgress(ctx context.Context, prg LectureProgress) (LectureProgress, error)
	}

	ServiceInterface interface {
		CreateCourse(ctx context.Context, actor *user.User, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context, actor *user.User, filter *CourseQueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, actor *user.User, id string) (Course, error)
		UpdateCourse(ctx context.Context, actor *user.User, id string, uc UpdateCourse) (Course, error)
		DeleteCourses(ctx context.Context, actor *user.User, ids ...string) error

		CreateLecture(ctx context.Context, actor *user.User, nl NewLecture) (Lecture, error)
		QueryLectures(ctx context.Context, actor *user.User, filter *LectureQueryFilter, ordering []core.DBOrdering) ([]Lecture, error)
		GetLecture(ctx context.Context, actor *user.User, id string) (Lecture, error)
		UpdateLecture(ctx context.Context, actor *user.User, id string, ul UpdateLecture) (Lecture, error)
		DeleteLectures(ctx context.Context, actor *user.User, ids ...string) error

		Enroll(ctx context.Context, actor *user.User, courseID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, actor *user.User, filter *EnrollmentQueryFilter, ordering []core.DBOrdering) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, actor *user.User, id string) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, actor *user.User, id string, ue UpdateEnrollment) (Enrollment, error)
		Withdraw(ctx context.Context, actor *user.User, id string) error

		SaveProgress(ctx context.Context, actor *user.User, sp SaveProgress) (LectureProgress, error)
		QueryProgress(ctx context.Context, actor *user.User, filter *ProgressQueryFilter, ordering []core.DBOrdering) ([]LectureProgress, error)

		SyncCounters(ctx context.Context, courseID string) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

// ------------------------------------------------------------------ courses

func (svc *service) CreateCourse(ctx context.Context, actor *user.User, nc NewCourse) (Course, error) {
	if err := access.CanCreate(actor, access.EntityCourse); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	status := nc.Status
	if status == "" {
		status = StatusActive
	}
	crs := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		Category:     nc.Category,
		Level:        nc.Level,
		Status:       status,
		InstructorID: access.Attribution(actor, access.EntityCourse).InstructorID,
		IsPublished:  nc.IsPublished,
		StartDate:    nc.StartDate,
		EndDate:      nc.EndDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// only admins may attribute a course to someone else
	if crs.InstructorID == "" && actor.IsAdmin() {
		crs.InstructorID = nc.InstructorID
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) QueryCourses(ctx context.Context, actor *user.User, filter *CourseQueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, access.Resolve(actor, access.EntityCourse), filter, ordering)
}

func (svc *service) GetCourse(ctx context.Context, actor *user.User, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !svc.courseVisible(access.Resolve(actor, access.EntityCourse), crs) {
		return Course{}, ErrCourseNotFound
	}
	return crs, nil
}

func (svc *service) UpdateCourse(ctx context.Context, actor *user.User, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.GetCourse(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if err = svc.canMutate(actor, access.EntityCourse, crs.InstructorID, ErrCourseNotFound); err != nil {
		return Course{}, err
	}

	if uc.Title != "" {
		crs.Title = uc.Title
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.Category != "" {
		crs.Category = uc.Category
	}
	if uc.Level != "" {
		crs.Level = uc.Level
	}
	if uc.Status != "" {
		crs.Status = uc.Status
	}
	if uc.InstructorID != "" && actor.IsAdmin() {
		crs.InstructorID = uc.InstructorID
	}
	if uc.IsPublished != nil {
		crs.IsPublished = *uc.IsPublished
	}
	if uc.StartDate != nil {
		crs.StartDate = uc.StartDate
	}
	if uc.EndDate != nil {
		crs.EndDate = uc.EndDate
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) DeleteCourses(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		crs, err := svc.GetCourse(ctx, actor, id)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, access.EntityCourse, crs.InstructorID, ErrCourseNotFound); err != nil {
			return err
		}
	}
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}

// ----------------------------------------------------------------- lectures

func (svc *service) CreateLecture(ctx context.Context, actor *user.User, nl NewLecture) (Lecture, error) {
	if err := access.CanCreate(actor, access.EntityLecture); err != nil {
		return Lecture{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, nl.CourseID)
	if err != nil {
		return Lecture{}, err
	}
	if err = svc.canMutate(actor, access.EntityLecture, crs.InstructorID, ErrCourseNotFound); err != nil {
		return Lecture{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateLecture(ctx, Lecture{
		CourseID:        crs.ID,
		Title:           nl.Title,
		OrderIndex:      nl.OrderIndex,
		IsPublished:     nl.IsPublished,
		DurationMinutes: nl.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) QueryLectures(ctx context.Context, actor *user.User, filter *LectureQueryFilter, ordering []core.DBOrdering) ([]Lecture, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryLectures(ctx, access.Resolve(actor, access.EntityLecture), filter, ordering)
}

func (svc *service) GetLecture(ctx context.Context, actor *user.User, id string) (Lecture, error) {
	lec, err := svc.repo.GetLecture(ctx, id)
	if err != nil {
		return Lecture{}, err
	}
	if ok, err := svc.parentVisible(ctx, access.Resolve(actor, access.EntityLecture), lec.CourseID, ""); err != nil {
		return Lecture{}, err
	} else if !ok {
		return Lecture{}, ErrLectureNotFound
	}
	return lec, nil
}

func (svc *service) UpdateLecture(ctx context.Context, actor *user.User, id string, ul UpdateLecture) (Lecture, error) {
	lec, err := svc.GetLecture(ctx, actor, id)
	if err != nil {
		return Lecture{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, lec.CourseID)
	if err != nil {
		return Lecture{}, err
	}
	if err = svc.canMutate(actor, access.EntityLecture, crs.InstructorID, ErrLectureNotFound); err != nil {
		return Lecture{}, err
	}

	if ul.Title != "" {
		lec.Title = ul.Title
	}
	if ul.OrderIndex != nil {
		lec.OrderIndex = *ul.OrderIndex
	}
	if ul.IsPublished != nil {
		lec.IsPublished = *ul.IsPublished
	}
	if ul.DurationMinutes != nil {
		lec.DurationMinutes = *ul.DurationMinutes
	}
	lec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLecture(ctx, lec)
}

func (svc *service) DeleteLectures(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		lec, err := svc.GetLecture(ctx, actor, id)
		if err != nil {
			return err
		}
		crs, err := svc.repo.GetCourse(ctx, lec.CourseID)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, access.EntityLecture, crs.InstructorID, ErrLectureNotFound); err != nil {
			return err
		}
	}
	return svc.repo.DeleteLecturesByID(ctx, ids...)
}

// -------------------------------------------------------------- enrollments

// Enroll enrolls the requesting user into a course. Re-enrolling returns the
// existing enrollment unchanged; the course's total_enrollments is recomputed
// from the live enrollment count in the same operation.
func (svc *service) Enroll(ctx context.Context, actor *user.User, courseID string) (Enrollment, error) {
	if err := access.CanCreate(actor, access.EntityEnrollment); err != nil {
		return Enrollment{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	if enr, err := svc.repo.GetEnrollmentForStudent(ctx, crs.ID, actor.ID); err == nil {
		return enr, nil
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		CourseID:       crs.ID,
		StudentID:      actor.ID,
		Status:         EnrollmentActive,
		EnrollmentDate: now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.recountEnrollments(ctx, crs.ID); err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

func (svc *service) QueryEnrollments(ctx context.Context, actor *user.User, filter *EnrollmentQueryFilter, ordering []core.DBOrdering) ([]Enrollment, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryEnrollments(ctx, access.Resolve(actor, access.EntityEnrollment), filter, ordering)
}

func (svc *service) GetEnrollment(ctx context.Context, actor *user.User, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if ok, err := svc.parentVisible(ctx, access.Resolve(actor, access.EntityEnrollment), enr.CourseID, enr.StudentID); err != nil {
		return Enrollment{}, err
	} else if !ok {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	return enr, nil
}

func (svc *service) UpdateEnrollment(ctx context.Context, actor *user.User, id string, ue UpdateEnrollment) (Enrollment, error) {
	enr, err := svc.GetEnrollment(ctx, actor, id)
	if err != nil {
		return Enrollment{}, err
	}
	owner, err := svc.effectiveOwner(ctx, actor, enr.CourseID, enr.StudentID)
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.canMutate(actor, access.EntityEnrollment, owner, ErrEnrollmentNotFound); err != nil {
		return Enrollment{}, err
	}

	if ue.Status != "" {
		enr.Status = ue.Status
	}
	if ue.ProgressPercentage != nil {
		enr.ProgressPercentage = *ue.ProgressPercentage
	}
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// Withdraw removes an enrollment and recomputes the course's counter.
func (svc *service) Withdraw(ctx context.Context, actor *user.User, id string) error {
	enr, err := svc.GetEnrollment(ctx, actor, id)
	if err != nil {
		return err
	}
	owner, err := svc.effectiveOwner(ctx, actor, enr.CourseID, enr.StudentID)
	if err != nil {
		return err
	}
	if err = svc.canMutate(actor, access.EntityEnrollment, owner, ErrEnrollmentNotFound); err != nil {
		return err
	}
	if err = svc.repo.DeleteEnrollmentsByID(ctx, enr.ID); err != nil {
		return err
	}
	return svc.recountEnrollments(ctx, enr.CourseID)
}

// ----------------------------------------------------------------- progress

// SaveProgress upserts the requesting user's progress on a lecture.
func (svc *service) SaveProgress(ctx context.Context, actor *user.User, sp SaveProgress) (LectureProgress, error) {
	if err := access.CanCreate(actor, access.EntityLectureProgress); err != nil {
		return LectureProgress{}, err
	}
	lec, err := svc.repo.GetLecture(ctx, sp.LectureID)
	if err != nil {
		return LectureProgress{}, err
	}

	now := time.Now().UTC()
	prg, err := svc.repo.GetProgressForStudent(ctx, lec.ID, actor.ID)
	switch errors.Cause(err) {
	case nil:
	case ErrProgressNotFound:
		prg = LectureProgress{
			LectureID: lec.ID,
			StudentID: actor.ID,
			Status:    ProgressNotStarted,
			CreatedAt: now,
		}
	default:
		return LectureProgress{}, err
	}

	prg.Status = sp.Status
	if sp.WatchTimeMinutes > prg.WatchTimeMinutes {
		prg.WatchTimeMinutes = sp.WatchTimeMinutes
	}
	if prg.Status == ProgressCompleted && prg.CompletedAt == nil {
		prg.CompletedAt = &now
	}
	prg.UpdatedAt = now

	if prg.ID == "" {
		return svc.repo.CreateProgress(ctx, prg)
	}
	return svc.repo.UpdateProgress(ctx, prg)
}

func (svc *service) QueryProgress(ctx context.Context, actor *user.User, filter *ProgressQueryFilter, ordering []core.DBOrdering) ([]LectureProgress, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryProgress(ctx, access.Resolve(actor, access.EntityLectureProgress), filter, ordering)
}

// ------------------------------------------------------------------- sweeps

// SyncCounters recomputes total_enrollments and total_lectures from live row
// counts for one course (or all when courseID is empty) and reports how many
// courses were corrected. It is idempotent and safe to run alongside traffic.
func (svc *service) SyncCounters(ctx context.Context, courseID string) (int, error) {
	var courses []Course
	if courseID != "" {
		crs, err := svc.repo.GetCourse(ctx, courseID)
		if err != nil {
			return 0, err
		}
		courses = append(courses, crs)
	} else {
		var err error
		if courses, err = svc.repo.QueryCourses(ctx, access.Scope{All: true}, nil, nil); err != nil {
			return 0, err
		}
	}

	var fixed int
	for _, crs := range courses {
		enrs, err := svc.repo.CountEnrollments(ctx, crs.ID)
		if err != nil {
			return fixed, errors.Wrapf(err, "counting enrollments for course %s", crs.ID)
		}
		lecs, err := svc.repo.CountLectures(ctx, crs.ID)
		if err != nil {
			return fixed, errors.Wrapf(err, "counting lectures for course %s", crs.ID)
		}
		if enrs == crs.TotalEnrollments && lecs == crs.TotalLectures {
			continue
		}
		if err = svc.repo.SetCourseEnrollmentCount(ctx, crs.ID, enrs); err != nil {
			return fixed, err
		}
		if err = svc.repo.SetCourseLectureCount(ctx, crs.ID, lecs); err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}

// ------------------------------------------------------------------ helpers

func (svc *service) recountEnrollments(ctx context.Context, courseID string) error {
	n, err := svc.repo.CountEnrollments(ctx, courseID)
	if err != nil {
		return errors.Wrapf(err, "counting enrollments for course %s", courseID)
	}
	return svc.repo.SetCourseEnrollmentCount(ctx, courseID, n)
}

func (svc *service) courseVisible(scope access.Scope, crs Course) bool {
	switch {
	case scope.All:
		return true
	case scope.InstructorID != "":
		return crs.InstructorID == scope.InstructorID
	}
	return false
}

// parentVisible checks a course-child row against a resolved scope;
// studentID is the row's student attribute when it has one.
func (svc *service) parentVisible(ctx context.Context, scope access.Scope, courseID, studentID string) (bool, error) {
	switch {
	case scope.All:
		return true, nil
	case scope.StudentID != "":
		return studentID == scope.StudentID, nil
	case scope.CourseInstructorID != "":
		crs, err := svc.repo.GetCourse(ctx, courseID)
		if err != nil {
			if errors.Cause(err) == ErrCourseNotFound {
				return false, nil
			}
			return false, err
		}
		return crs.InstructorID == scope.CourseInstructorID, nil
	}
	return false, nil
}

// effectiveOwner resolves the ownership attribute CanMutate should compare
// for course-child rows: the student for students, the course's instructor
// for teachers.
func (svc *service) effectiveOwner(ctx context.Context, actor *user.User, courseID, studentID string) (string, error) {
	if actor == nil || actor.IsStudent() {
		return studentID, nil
	}
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	return crs.InstructorID, nil
}

// canMutate maps a hidden instance onto the domain's not-found error.
func (svc *service) canMutate(actor *user.User, e access.Entity, ownerID string, notFound error) error {
	switch err := access.CanMutate(actor, e, ownerID); err {
	case nil:
		return nil
	case access.ErrHidden:
		return notFound
	default:
		return err
	}
}
