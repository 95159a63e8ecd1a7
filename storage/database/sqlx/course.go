package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/course"
)

type courseRow struct {
	ID               string      `db:"id"`
	Title            string      `db:"title"`
	Description      null.String `db:"description"`
	Category         null.String `db:"category"`
	Level            null.String `db:"level"`
	Status           string      `db:"status"`
	InstructorID     null.String `db:"instructor_id"`
	IsPublished      bool        `db:"is_published"`
	TotalLectures    int         `db:"total_lectures"`
	TotalEnrollments int         `db:"total_enrollments"`
	StartDate        null.Time   `db:"start_date"`
	EndDate          null.Time   `db:"end_date"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

func (row courseRow) unpack() course.Course {
	return course.Course{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description.String,
		Category:         row.Category.String,
		Level:            row.Level.String,
		Status:           row.Status,
		InstructorID:     row.InstructorID.String,
		IsPublished:      row.IsPublished,
		TotalLectures:    row.TotalLectures,
		TotalEnrollments: row.TotalEnrollments,
		StartDate:        row.StartDate.Ptr(),
		EndDate:          row.EndDate.Ptr(),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

type lectureRow struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	Title           string    `db:"title"`
	OrderIndex      int       `db:"order_index"`
	IsPublished     bool      `db:"is_published"`
	DurationMinutes int       `db:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row lectureRow) unpack() course.Lecture {
	return course.Lecture(row)
}

type enrollmentRow struct {
	ID                 string    `db:"id"`
	CourseID           string    `db:"course_id"`
	StudentID          string    `db:"student_id"`
	Status             string    `db:"status"`
	ProgressPercentage float64   `db:"progress_percentage"`
	EnrollmentDate     time.Time `db:"enrollment_date"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (row enrollmentRow) unpack() course.Enrollment {
	return course.Enrollment(row)
}

type progressRow struct {
	ID               string    `db:"id"`
	LectureID        string    `db:"lecture_id"`
	StudentID        string    `db:"student_id"`
	Status           string    `db:"status"`
	WatchTimeMinutes int       `db:"watch_time_minutes"`
	CompletedAt      null.Time `db:"completed_at"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (row progressRow) unpack() course.LectureProgress {
	return course.LectureProgress{
		ID:               row.ID,
		LectureID:        row.LectureID,
		StudentID:        row.StudentID,
		Status:           row.Status,
		WatchTimeMinutes: row.WatchTimeMinutes,
		CompletedAt:      row.CompletedAt.Ptr(),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

var (
	courseCols     = cols("title", "category", "level", "status", "total_lectures", "total_enrollments", "start_date", "created_at", "updated_at")
	lectureCols    = cols("title", "order_index", "duration_minutes", "created_at", "updated_at")
	enrollmentCols = cols("status", "progress_percentage", "enrollment_date", "updated_at")
	progressCols   = cols("status", "watch_time_minutes", "completed_at", "created_at", "updated_at")
)

const (
	selectCourse     = `SELECT id, title, description, category, level, status, instructor_id, is_published, total_lectures, total_enrollments, start_date, end_date, created_at, updated_at FROM course`
	selectLecture    = `SELECT id, course_id, title, order_index, is_published, duration_minutes, created_at, updated_at FROM lecture`
	selectEnrollment = `SELECT id, course_id, student_id, status, progress_percentage, enrollment_date, updated_at FROM enrollment`
	selectProgress   = `SELECT id, lecture_id, student_id, status, watch_time_minutes, completed_at, created_at, updated_at FROM lecture_progress`

	lectureCourseScope    = `course_id IN (SELECT id FROM course WHERE instructor_id = ?)`
	enrollmentCourseScope = lectureCourseScope
	progressCourseScope   = `lecture_id IN (SELECT l.id FROM lecture l JOIN course c ON c.id = l.course_id WHERE c.instructor_id = ?)`
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// ------------------------------------------------------------------ courses

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO course (id, title, description, category, level, status, instructor_id, is_published, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		crs.ID, crs.Title, crs.Description, crs.Category, crs.Level, crs.Status,
		null.NewString(crs.InstructorID, crs.InstructorID != ""), crs.IsPublished,
		null.TimeFromPtr(crs.StartDate), null.TimeFromPtr(crs.EndDate),
		crs.CreatedAt.UTC(), crs.UpdatedAt.UTC())
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, scope access.Scope, filter *course.CourseQueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.InstructorID != "":
		conds = append(conds, "instructor_id = ?")
		args = append(args, scope.InstructorID)
	default:
		return []course.Course{}, nil
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, "(title ILIKE ? OR description ILIKE ?)")
			args = append(args, val, val)
		}
		if filter.Category != "" {
			conds = append(conds, "category = ?")
			args = append(args, filter.Category)
		}
		if filter.Level != "" {
			conds = append(conds, "level = ?")
			args = append(args, filter.Level)
		}
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, filter.Status)
		}
		if filter.InstructorID != "" {
			conds = append(conds, "instructor_id = ?")
			args = append(args, filter.InstructorID)
		}
	}

	q := repo.db.Rebind(selectCourse + where(conds) + orderBy(ordering, courseCols, "created_at ASC"))
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unpack())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := repo.db.Rebind(selectCourse + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrCourseNotFound, "getting course")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	// counters are maintained by their own setters
	var row courseRow
	q := repo.db.Rebind(`
		UPDATE course SET title = ?, description = ?, category = ?, level = ?, status = ?, instructor_id = ?,
			is_published = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, title, description, category, level, status, instructor_id, is_published, total_lectures, total_enrollments, start_date, end_date, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		crs.Title, crs.Description, crs.Category, crs.Level, crs.Status,
		null.NewString(crs.InstructorID, crs.InstructorID != ""), crs.IsPublished,
		null.TimeFromPtr(crs.StartDate), null.TimeFromPtr(crs.EndDate), crs.UpdatedAt.UTC(), crs.ID)
	if err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrCourseNotFound, "updating course")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) setCourseCount(ctx context.Context, col, id string, n int) error {
	q := repo.db.Rebind(`UPDATE course SET ` + col + ` = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, n, id)
	if err != nil {
		return errors.Wrap(err, "updating course counter")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return course.ErrCourseNotFound
	}
	return nil
}

func (repo *courseRepository) SetCourseEnrollmentCount(ctx context.Context, id string, n int) error {
	return repo.setCourseCount(ctx, "total_enrollments", id, n)
}

func (repo *courseRepository) SetCourseLectureCount(ctx context.Context, id string, n int) error {
	return repo.setCourseCount(ctx, "total_lectures", id, n)
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "course", ids); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

func (repo *courseRepository) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	var n int
	q := repo.db.Rebind(`SELECT COUNT(*) FROM enrollment WHERE course_id = ?`)
	if err := repo.db.GetContext(ctx, &n, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

func (repo *courseRepository) CountLectures(ctx context.Context, courseID string) (int, error) {
	var n int
	q := repo.db.Rebind(`SELECT COUNT(*) FROM lecture WHERE course_id = ?`)
	if err := repo.db.GetContext(ctx, &n, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting lectures")
	}
	return n, nil
}

// ----------------------------------------------------------------- lectures

func (repo *courseRepository) CreateLecture(ctx context.Context, lec course.Lecture) (course.Lecture, error) {
	lec.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO lecture (id, course_id, title, order_index, is_published, duration_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		lec.ID, lec.CourseID, lec.Title, lec.OrderIndex, lec.IsPublished, lec.DurationMinutes,
		lec.CreatedAt.UTC(), lec.UpdatedAt.UTC())
	if err != nil {
		return course.Lecture{}, errors.Wrap(err, "inserting lecture")
	}
	return lec, nil
}

func (repo *courseRepository) QueryLectures(ctx context.Context, scope access.Scope, filter *course.LectureQueryFilter, ordering []core.DBOrdering) ([]course.Lecture, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.CourseInstructorID != "":
		conds = append(conds, lectureCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []course.Lecture{}, nil
	}

	if filter != nil && filter.CourseID != "" {
		conds = append(conds, "course_id = ?")
		args = append(args, filter.CourseID)
	}

	q := repo.db.Rebind(selectLecture + where(conds) + orderBy(ordering, lectureCols, "order_index ASC"))
	var rows []lectureRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying lectures")
	}

	lectures := make([]course.Lecture, 0, len(rows))
	for _, row := range rows {
		lectures = append(lectures, row.unpack())
	}
	return lectures, nil
}

func (repo *courseRepository) GetLecture(ctx context.Context, id string) (course.Lecture, error) {
	var row lectureRow
	q := repo.db.Rebind(selectLecture + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Lecture{}, repo.trapNoRowsErr(err, course.ErrLectureNotFound, "getting lecture")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) UpdateLecture(ctx context.Context, lec course.Lecture) (course.Lecture, error) {
	q := repo.db.Rebind(`
		UPDATE lecture SET course_id = ?, title = ?, order_index = ?, is_published = ?, duration_minutes = ?, updated_at = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		lec.CourseID, lec.Title, lec.OrderIndex, lec.IsPublished, lec.DurationMinutes, lec.UpdatedAt.UTC(), lec.ID)
	if err != nil {
		return course.Lecture{}, errors.Wrap(err, "updating lecture")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return course.Lecture{}, course.ErrLectureNotFound
	}
	return repo.GetLecture(ctx, lec.ID)
}

func (repo *courseRepository) DeleteLecturesByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "lecture", ids); err != nil {
		return errors.Wrap(err, "deleting lectures")
	}
	return nil
}

// -------------------------------------------------------------- enrollments

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	enr.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO enrollment (id, course_id, student_id, status, progress_percentage, enrollment_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		enr.ID, enr.CourseID, enr.StudentID, enr.Status, enr.ProgressPercentage,
		enr.EnrollmentDate.UTC(), enr.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// lost the (course, student) race: the concurrent enrollment stands
			return repo.GetEnrollmentForStudent(ctx, enr.CourseID, enr.StudentID)
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, scope access.Scope, filter *course.EnrollmentQueryFilter, ordering []core.DBOrdering) ([]course.Enrollment, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.StudentID != "":
		conds = append(conds, "student_id = ?")
		args = append(args, scope.StudentID)
	case scope.CourseInstructorID != "":
		conds = append(conds, enrollmentCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []course.Enrollment{}, nil
	}

	if filter != nil {
		if filter.CourseID != "" {
			conds = append(conds, "course_id = ?")
			args = append(args, filter.CourseID)
		}
		if filter.StudentID != "" {
			conds = append(conds, "student_id = ?")
			args = append(args, filter.StudentID)
		}
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, filter.Status)
		}
	}

	q := repo.db.Rebind(selectEnrollment + where(conds) + orderBy(ordering, enrollmentCols, "enrollment_date ASC"))
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.unpack())
	}
	return enrollments, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, id string) (course.Enrollment, error) {
	var row enrollmentRow
	q := repo.db.Rebind(selectEnrollment + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Enrollment{}, repo.trapNoRowsErr(err, course.ErrEnrollmentNotFound, "getting enrollment")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) GetEnrollmentForStudent(ctx context.Context, courseID, studentID string) (course.Enrollment, error) {
	var row enrollmentRow
	q := repo.db.Rebind(selectEnrollment + " WHERE course_id = ? AND student_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, courseID, studentID); err != nil {
		return course.Enrollment{}, repo.trapNoRowsErr(err, course.ErrEnrollmentNotFound, "getting enrollment")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	q := repo.db.Rebind(`
		UPDATE enrollment SET status = ?, progress_percentage = ?, updated_at = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, enr.Status, enr.ProgressPercentage, enr.UpdatedAt.UTC(), enr.ID)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	return repo.GetEnrollment(ctx, enr.ID)
}

func (repo *courseRepository) DeleteEnrollmentsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "enrollment", ids); err != nil {
		return errors.Wrap(err, "deleting enrollments")
	}
	return nil
}

// ----------------------------------------------------------------- progress

func (repo *courseRepository) CreateProgress(ctx context.Context, prg course.LectureProgress) (course.LectureProgress, error) {
	prg.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO lecture_progress (id, lecture_id, student_id, status, watch_time_minutes, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		prg.ID, prg.LectureID, prg.StudentID, prg.Status, prg.WatchTimeMinutes,
		null.TimeFromPtr(prg.CompletedAt), prg.CreatedAt.UTC(), prg.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// lost the (lecture, student) race: carry on against the winner's row
			existing, gerr := repo.GetProgressForStudent(ctx, prg.LectureID, prg.StudentID)
			if gerr != nil {
				return course.LectureProgress{}, core.NewConflictError("progress for this lecture already exists")
			}
			existing.Status = prg.Status
			existing.WatchTimeMinutes = prg.WatchTimeMinutes
			existing.CompletedAt = prg.CompletedAt
			existing.UpdatedAt = prg.UpdatedAt
			return repo.UpdateProgress(ctx, existing)
		}
		return course.LectureProgress{}, errors.Wrap(err, "inserting lecture progress")
	}
	return prg, nil
}

func (repo *courseRepository) QueryProgress(ctx context.Context, scope access.Scope, filter *course.ProgressQueryFilter, ordering []core.DBOrdering) ([]course.LectureProgress, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.StudentID != "":
		conds = append(conds, "student_id = ?")
		args = append(args, scope.StudentID)
	case scope.CourseInstructorID != "":
		conds = append(conds, progressCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []course.LectureProgress{}, nil
	}

	if filter != nil {
		if filter.LectureID != "" {
			conds = append(conds, "lecture_id = ?")
			args = append(args, filter.LectureID)
		}
		if filter.StudentID != "" {
			conds = append(conds, "student_id = ?")
			args = append(args, filter.StudentID)
		}
	}

	q := repo.db.Rebind(selectProgress + where(conds) + orderBy(ordering, progressCols, "created_at ASC"))
	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying lecture progress")
	}

	progress := make([]course.LectureProgress, 0, len(rows))
	for _, row := range rows {
		progress = append(progress, row.unpack())
	}
	return progress, nil
}

func (repo *courseRepository) GetProgressForStudent(ctx context.Context, lectureID, studentID string) (course.LectureProgress, error) {
	var row progressRow
	q := repo.db.Rebind(selectProgress + " WHERE lecture_id = ? AND student_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, lectureID, studentID); err != nil {
		return course.LectureProgress{}, repo.trapNoRowsErr(err, course.ErrProgressNotFound, "getting lecture progress")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) UpdateProgress(ctx context.Context, prg course.LectureProgress) (course.LectureProgress, error) {
	var row progressRow
	q := repo.db.Rebind(`
		UPDATE lecture_progress SET status = ?, watch_time_minutes = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, lecture_id, student_id, status, watch_time_minutes, completed_at, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		prg.Status, prg.WatchTimeMinutes, null.TimeFromPtr(prg.CompletedAt), prg.UpdatedAt.UTC(), prg.ID)
	if err != nil {
		return course.LectureProgress{}, repo.trapNoRowsErr(err, course.ErrProgressNotFound, "updating lecture progress")
	}
	return row.unpack(), nil
}
