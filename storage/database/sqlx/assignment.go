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
	"github.com/trezcool/shule/core/assignment"
)

type assignmentRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	DueDate     null.Time   `db:"due_date"`
	TotalMarks  float64     `db:"total_marks"`
	Status      string      `db:"status"`
	CreatedByID null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row assignmentRow) unpack() assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description.String,
		DueDate:     row.DueDate.Ptr(),
		TotalMarks:  row.TotalMarks,
		Status:      row.Status,
		CreatedByID: row.CreatedByID.String,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type assignmentSubmissionRow struct {
	ID              string       `db:"id"`
	AssignmentID    string       `db:"assignment_id"`
	StudentID       string       `db:"student_id"`
	SubmissionText  null.String  `db:"submission_text"`
	FileURL         null.String  `db:"file_url"`
	Status          string       `db:"status"`
	MarksObtained   null.Float64 `db:"marks_obtained"`
	Grade           null.String  `db:"grade"`
	TeacherFeedback null.String  `db:"teacher_feedback"`
	GradedByID      null.String  `db:"graded_by"`
	GradedAt        null.Time    `db:"graded_at"`
	SubmittedAt     time.Time    `db:"submitted_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (row assignmentSubmissionRow) unpack() assignment.Submission {
	return assignment.Submission{
		ID:              row.ID,
		AssignmentID:    row.AssignmentID,
		StudentID:       row.StudentID,
		SubmissionText:  row.SubmissionText.String,
		FileURL:         row.FileURL.String,
		Status:          row.Status,
		MarksObtained:   row.MarksObtained.Ptr(),
		Grade:           row.Grade.String,
		TeacherFeedback: row.TeacherFeedback.String,
		GradedByID:      row.GradedByID.String,
		GradedAt:        row.GradedAt.Ptr(),
		SubmittedAt:     row.SubmittedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

var (
	assignmentCols    = cols("title", "due_date", "total_marks", "status", "created_at", "updated_at")
	asgSubmissionCols = cols("status", "marks_obtained", "grade", "graded_at", "submitted_at", "updated_at")
)

const (
	selectAssignment    = `SELECT id, course_id, title, description, due_date, total_marks, status, created_by, created_at, updated_at FROM assignment`
	selectAsgSubmission = `SELECT id, assignment_id, student_id, submission_text, file_url, status, marks_obtained, grade, teacher_feedback, graded_by, graded_at, submitted_at, updated_at FROM assignment_submission`

	asgSubmissionCourseScope = `assignment_id IN (SELECT a.id FROM assignment a JOIN course c ON c.id = a.course_id WHERE c.instructor_id = ?)`
)

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// -------------------------------------------------------------- assignments

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	asg.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO assignment (id, course_id, title, description, due_date, total_marks, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		asg.ID, asg.CourseID, asg.Title, asg.Description, null.TimeFromPtr(asg.DueDate),
		asg.TotalMarks, asg.Status, null.NewString(asg.CreatedByID, asg.CreatedByID != ""),
		asg.CreatedAt.UTC(), asg.UpdatedAt.UTC())
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, scope access.Scope, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.CreatedByID != "":
		conds = append(conds, "created_by = ?")
		args = append(args, scope.CreatedByID)
	default:
		return []assignment.Assignment{}, nil
	}

	if filter != nil {
		if filter.CourseID != "" {
			conds = append(conds, "course_id = ?")
			args = append(args, filter.CourseID)
		}
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, filter.Status)
		}
	}

	q := repo.db.Rebind(selectAssignment + where(conds) + orderBy(ordering, assignmentCols, "created_at ASC"))
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.unpack())
	}
	return assignments, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	q := repo.db.Rebind(selectAssignment + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return row.unpack(), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	var row assignmentRow
	q := repo.db.Rebind(`
		UPDATE assignment SET course_id = ?, title = ?, description = ?, due_date = ?, total_marks = ?, status = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, course_id, title, description, due_date, total_marks, status, created_by, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		asg.CourseID, asg.Title, asg.Description, null.TimeFromPtr(asg.DueDate),
		asg.TotalMarks, asg.Status, asg.UpdatedAt.UTC(), asg.ID)
	if err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	return row.unpack(), nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "assignment", ids); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

// -------------------------------------------------------------- submissions

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	sub.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO assignment_submission (id, assignment_id, student_id, submission_text, file_url, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.SubmissionText, sub.FileURL, sub.Status,
		sub.SubmittedAt.UTC(), sub.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// lost the (assignment, student) race: carry on against the winner's row
			existing, gerr := repo.GetSubmissionForStudent(ctx, sub.AssignmentID, sub.StudentID)
			if gerr != nil {
				return assignment.Submission{}, core.NewConflictError("a submission for this assignment already exists")
			}
			existing.SubmissionText = sub.SubmissionText
			existing.FileURL = sub.FileURL
			existing.Status = sub.Status
			existing.SubmittedAt = sub.SubmittedAt
			existing.UpdatedAt = sub.UpdatedAt
			return repo.UpdateSubmission(ctx, existing)
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, scope access.Scope, filter *assignment.SubmissionQueryFilter, ordering []core.DBOrdering) ([]assignment.Submission, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.StudentID != "":
		conds = append(conds, "student_id = ?")
		args = append(args, scope.StudentID)
	case scope.CourseInstructorID != "":
		conds = append(conds, asgSubmissionCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []assignment.Submission{}, nil
	}

	if filter != nil {
		if filter.AssignmentID != "" {
			conds = append(conds, "assignment_id = ?")
			args = append(args, filter.AssignmentID)
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

	q := repo.db.Rebind(selectAsgSubmission + where(conds) + orderBy(ordering, asgSubmissionCols, "submitted_at ASC"))
	var rows []assignmentSubmissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	submissions := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, row.unpack())
	}
	return submissions, nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id string) (assignment.Submission, error) {
	var row assignmentSubmissionRow
	q := repo.db.Rebind(selectAsgSubmission + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.unpack(), nil
}

func (repo *assignmentRepository) GetSubmissionForStudent(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	var row assignmentSubmissionRow
	q := repo.db.Rebind(selectAsgSubmission + " WHERE assignment_id = ? AND student_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, assignmentID, studentID); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.unpack(), nil
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	var row assignmentSubmissionRow
	q := repo.db.Rebind(`
		UPDATE assignment_submission SET submission_text = ?, file_url = ?, status = ?, marks_obtained = ?, grade = ?,
			teacher_feedback = ?, graded_by = ?, graded_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, assignment_id, student_id, submission_text, file_url, status, marks_obtained, grade, teacher_feedback, graded_by, graded_at, submitted_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		sub.SubmissionText, sub.FileURL, sub.Status, null.Float64FromPtr(sub.MarksObtained),
		null.NewString(sub.Grade, sub.Grade != ""), sub.TeacherFeedback,
		null.NewString(sub.GradedByID, sub.GradedByID != ""), null.TimeFromPtr(sub.GradedAt),
		sub.UpdatedAt.UTC(), sub.ID)
	if err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "updating submission")
	}
	return row.unpack(), nil
}

func (repo *assignmentRepository) CourseInstructor(ctx context.Context, courseID string) (string, error) {
	var instructor null.String
	q := repo.db.Rebind(`SELECT instructor_id FROM course WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &instructor, q, courseID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "resolving course instructor")
	}
	return instructor.String, nil
}
