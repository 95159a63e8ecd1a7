package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/course"
)

type courseRepository struct {
	db *courseTables
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) courseInstructor(courseID string) string {
	if crs, ok := repo.db.courses[courseID]; ok {
		return crs.InstructorID
	}
	return ""
}

// ------------------------------------------------------------------ courses

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, scope access.Scope, filter *course.CourseQueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		switch {
		case scope.All:
		case scope.InstructorID != "":
			if crs.InstructorID != scope.InstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil && !filter.IsEmpty() {
			if filter.Search != "" &&
				!strings.Contains(strings.ToLower(crs.Title), filter.Search) &&
				!strings.Contains(strings.ToLower(crs.Description), filter.Search) {
				continue
			}
			if filter.Category != "" && crs.Category != filter.Category {
				continue
			}
			if filter.Level != "" && crs.Level != filter.Level {
				continue
			}
			if filter.Status != "" && crs.Status != filter.Status {
				continue
			}
			if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
				continue
			}
		}
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	// counters are maintained by their own setters
	crs.TotalLectures = orig.TotalLectures
	crs.TotalEnrollments = orig.TotalEnrollments
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) SetCourseEnrollmentCount(ctx context.Context, id string, n int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrCourseNotFound
	}
	crs.TotalEnrollments = n
	return nil
}

func (repo *courseRepository) SetCourseLectureCount(ctx context.Context, id string, n int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrCourseNotFound
	}
	crs.TotalLectures = n
	return nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.courses, id)
	}
	return nil
}

func (repo *courseRepository) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (repo *courseRepository) CountLectures(ctx context.Context, courseID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, lec := range repo.db.lectures {
		if lec.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// ----------------------------------------------------------------- lectures

func (repo *courseRepository) CreateLecture(ctx context.Context, lec course.Lecture) (course.Lecture, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lec.ID = uuid.New().String()
	repo.db.lectures[lec.ID] = &lec
	return lec, nil
}

func (repo *courseRepository) QueryLectures(ctx context.Context, scope access.Scope, filter *course.LectureQueryFilter, ordering []core.DBOrdering) ([]course.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lectures := make([]course.Lecture, 0, len(repo.db.lectures))
	for _, lec := range repo.db.lectures {
		switch {
		case scope.All:
		case scope.CourseInstructorID != "":
			if repo.courseInstructor(lec.CourseID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil && filter.CourseID != "" && lec.CourseID != filter.CourseID {
			continue
		}
		lectures = append(lectures, *lec)
	}
	sort.Slice(lectures, func(i, j int) bool { return lectures[i].OrderIndex < lectures[j].OrderIndex })
	return lectures, nil
}

func (repo *courseRepository) GetLecture(ctx context.Context, id string) (course.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lec, ok := repo.db.lectures[id]; ok {
		return *lec, nil
	}
	return course.Lecture{}, course.ErrLectureNotFound
}

func (repo *courseRepository) UpdateLecture(ctx context.Context, lec course.Lecture) (course.Lecture, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lectures[lec.ID]; !ok {
		return course.Lecture{}, course.ErrLectureNotFound
	}
	repo.db.lectures[lec.ID] = &lec
	return lec, nil
}

func (repo *courseRepository) DeleteLecturesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.lectures, id)
	}
	return nil
}

// -------------------------------------------------------------- enrollments

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, scope access.Scope, filter *course.EnrollmentQueryFilter, ordering []core.DBOrdering) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]course.Enrollment, 0, len(repo.db.enrollments))
	for _, enr := range repo.db.enrollments {
		switch {
		case scope.All:
		case scope.StudentID != "":
			if enr.StudentID != scope.StudentID {
				continue
			}
		case scope.CourseInstructorID != "":
			if repo.courseInstructor(enr.CourseID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.CourseID != "" && enr.CourseID != filter.CourseID {
				continue
			}
			if filter.StudentID != "" && enr.StudentID != filter.StudentID {
				continue
			}
			if filter.Status != "" && enr.Status != filter.Status {
				continue
			}
		}
		enrollments = append(enrollments, *enr)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].EnrollmentDate.Before(enrollments[j].EnrollmentDate)
	})
	return enrollments, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, id string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return *enr, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) GetEnrollmentForStudent(ctx context.Context, courseID, studentID string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.StudentID == studentID {
			return *enr, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) DeleteEnrollmentsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.enrollments, id)
	}
	return nil
}

// ----------------------------------------------------------------- progress

func (repo *courseRepository) CreateProgress(ctx context.Context, prg course.LectureProgress) (course.LectureProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prg.ID = uuid.New().String()
	repo.db.progress[prg.ID] = &prg
	return prg, nil
}

func (repo *courseRepository) QueryProgress(ctx context.Context, scope access.Scope, filter *course.ProgressQueryFilter, ordering []core.DBOrdering) ([]course.LectureProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	progress := make([]course.LectureProgress, 0, len(repo.db.progress))
	for _, prg := range repo.db.progress {
		switch {
		case scope.All:
		case scope.StudentID != "":
			if prg.StudentID != scope.StudentID {
				continue
			}
		case scope.CourseInstructorID != "":
			lec, ok := repo.db.lectures[prg.LectureID]
			if !ok || repo.courseInstructor(lec.CourseID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.LectureID != "" && prg.LectureID != filter.LectureID {
				continue
			}
			if filter.StudentID != "" && prg.StudentID != filter.StudentID {
				continue
			}
		}
		progress = append(progress, *prg)
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].CreatedAt.Before(progress[j].CreatedAt) })
	return progress, nil
}

func (repo *courseRepository) GetProgressForStudent(ctx context.Context, lectureID, studentID string) (course.LectureProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, prg := range repo.db.progress {
		if prg.LectureID == lectureID && prg.StudentID == studentID {
			return *prg, nil
		}
	}
	return course.LectureProgress{}, course.ErrProgressNotFound
}

func (repo *courseRepository) UpdateProgress(ctx context.Context, prg course.LectureProgress) (course.LectureProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.progress[prg.ID]; !ok {
		return course.LectureProgress{}, course.ErrProgressNotFound
	}
	repo.db.progress[prg.ID] = &prg
	return prg, nil
}
