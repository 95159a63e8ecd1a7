package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/exam"
)

type testRow struct {
	ID              string      `db:"id"`
	CourseID        string      `db:"course_id"`
	Title           string      `db:"title"`
	TestType        null.String `db:"test_type"`
	ScheduledDate   null.Time   `db:"scheduled_date"`
	DurationMinutes int         `db:"duration_minutes"`
	TotalMarks      float64     `db:"total_marks"`
	Status          string      `db:"status"`
	CreatedByID     null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (row testRow) unpack() exam.Test {
	return exam.Test{
		ID:              row.ID,
		CourseID:        row.CourseID,
		Title:           row.Title,
		TestType:        row.TestType.String,
		ScheduledDate:   row.ScheduledDate.Ptr(),
		DurationMinutes: row.DurationMinutes,
		TotalMarks:      row.TotalMarks,
		Status:          row.Status,
		CreatedByID:     row.CreatedByID.String,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

type questionRow struct {
	ID            string         `db:"id"`
	TestID        string         `db:"test_id"`
	Type          null.String    `db:"type"`
	Text          string         `db:"text"`
	Options       pq.StringArray `db:"options"`
	CorrectAnswer null.String    `db:"correct_answer"`
	Marks         float64        `db:"marks"`
	OrderIndex    int            `db:"order_index"`
}

func (row questionRow) unpack() exam.Question {
	return exam.Question{
		ID:            row.ID,
		TestID:        row.TestID,
		Type:          row.Type.String,
		Text:          row.Text,
		Options:       row.Options,
		CorrectAnswer: row.CorrectAnswer.String,
		Marks:         row.Marks,
		OrderIndex:    row.OrderIndex,
	}
}

type testSubmissionRow struct {
	ID            string      `db:"id"`
	TestID        string      `db:"test_id"`
	StudentID     string      `db:"student_id"`
	MarksObtained float64     `db:"marks_obtained"`
	Grade         null.String `db:"grade"`
	Status        string      `db:"status"`
	SubmitTime    time.Time   `db:"submit_time"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (row testSubmissionRow) unpack() exam.Submission {
	return exam.Submission{
		ID:            row.ID,
		TestID:        row.TestID,
		StudentID:     row.StudentID,
		MarksObtained: row.MarksObtained,
		Grade:         row.Grade.String,
		Status:        row.Status,
		SubmitTime:    row.SubmitTime,
		UpdatedAt:     row.UpdatedAt,
	}
}

type answerRow struct {
	ID            string       `db:"id"`
	SubmissionID  string       `db:"submission_id"`
	QuestionID    string       `db:"question_id"`
	StudentAnswer null.String  `db:"student_answer"`
	IsCorrect     bool         `db:"is_correct"`
	MarksAwarded  null.Float64 `db:"marks_awarded"`
}

func (row answerRow) unpack() exam.Answer {
	return exam.Answer{
		ID:            row.ID,
		SubmissionID:  row.SubmissionID,
		QuestionID:    row.QuestionID,
		StudentAnswer: row.StudentAnswer.String,
		IsCorrect:     row.IsCorrect,
		MarksAwarded:  row.MarksAwarded.Ptr(),
	}
}

var (
	testCols          = cols("title", "test_type", "scheduled_date", "total_marks", "status", "created_at", "updated_at")
	questionCols      = cols("order_index", "marks")
	tstSubmissionCols = cols("marks_obtained", "grade", "status", "submit_time", "updated_at")
	answerCols        = cols("id", "is_correct", "marks_awarded")
)

const (
	selectTest          = `SELECT id, course_id, title, test_type, scheduled_date, duration_minutes, total_marks, status, created_by, created_at, updated_at FROM test`
	selectQuestion      = `SELECT id, test_id, type, text, options, correct_answer, marks, order_index FROM question`
	selectTstSubmission = `SELECT id, test_id, student_id, marks_obtained, grade, status, submit_time, updated_at FROM test_submission`
	selectAnswer        = `SELECT id, submission_id, question_id, student_answer, is_correct, marks_awarded FROM test_answer`

	questionCourseScope      = `test_id IN (SELECT t.id FROM test t JOIN course c ON c.id = t.course_id WHERE c.instructor_id = ?)`
	tstSubmissionCourseScope = questionCourseScope
	answerStudentScope       = `submission_id IN (SELECT id FROM test_submission WHERE student_id = ?)`
	answerCourseScope        = `submission_id IN (SELECT s.id FROM test_submission s JOIN test t ON t.id = s.test_id JOIN course c ON c.id = t.course_id WHERE c.instructor_id = ?)`
)

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo *examRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// -------------------------------------------------------------------- tests

func (repo *examRepository) CreateTest(ctx context.Context, tst exam.Test) (exam.Test, error) {
	tst.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO test (id, course_id, title, test_type, scheduled_date, duration_minutes, total_marks, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		tst.ID, tst.CourseID, tst.Title, tst.TestType, null.TimeFromPtr(tst.ScheduledDate),
		tst.DurationMinutes, tst.TotalMarks, tst.Status,
		null.NewString(tst.CreatedByID, tst.CreatedByID != ""), tst.CreatedAt.UTC(), tst.UpdatedAt.UTC())
	if err != nil {
		return exam.Test{}, errors.Wrap(err, "inserting test")
	}
	return tst, nil
}

func (repo *examRepository) QueryTests(ctx context.Context, scope access.Scope, filter *exam.TestQueryFilter, ordering []core.DBOrdering) ([]exam.Test, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.CreatedByID != "":
		conds = append(conds, "created_by = ?")
		args = append(args, scope.CreatedByID)
	default:
		return []exam.Test{}, nil
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

	q := repo.db.Rebind(selectTest + where(conds) + orderBy(ordering, testCols, "created_at ASC"))
	var rows []testRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}

	tests := make([]exam.Test, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, row.unpack())
	}
	return tests, nil
}

func (repo *examRepository) GetTest(ctx context.Context, id string) (exam.Test, error) {
	var row testRow
	q := repo.db.Rebind(selectTest + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return exam.Test{}, repo.trapNoRowsErr(err, exam.ErrTestNotFound, "getting test")
	}
	return row.unpack(), nil
}

func (repo *examRepository) UpdateTest(ctx context.Context, tst exam.Test) (exam.Test, error) {
	var row testRow
	q := repo.db.Rebind(`
		UPDATE test SET course_id = ?, title = ?, test_type = ?, scheduled_date = ?, duration_minutes = ?,
			total_marks = ?, status = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, course_id, title, test_type, scheduled_date, duration_minutes, total_marks, status, created_by, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		tst.CourseID, tst.Title, tst.TestType, null.TimeFromPtr(tst.ScheduledDate),
		tst.DurationMinutes, tst.TotalMarks, tst.Status, tst.UpdatedAt.UTC(), tst.ID)
	if err != nil {
		return exam.Test{}, repo.trapNoRowsErr(err, exam.ErrTestNotFound, "updating test")
	}
	return row.unpack(), nil
}

func (repo *examRepository) DeleteTestsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "test", ids); err != nil {
		return errors.Wrap(err, "deleting tests")
	}
	return nil
}

// ---------------------------------------------------------------- questions

func (repo *examRepository) CreateQuestion(ctx context.Context, qst exam.Question) (exam.Question, error) {
	qst.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO question (id, test_id, type, text, options, correct_answer, marks, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		qst.ID, qst.TestID, qst.Type, qst.Text, pq.StringArray(qst.Options),
		qst.CorrectAnswer, qst.Marks, qst.OrderIndex)
	if err != nil {
		return exam.Question{}, errors.Wrap(err, "inserting question")
	}
	return qst, nil
}

func (repo *examRepository) QueryQuestions(ctx context.Context, scope access.Scope, filter *exam.QuestionQueryFilter, ordering []core.DBOrdering) ([]exam.Question, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.CourseInstructorID != "":
		conds = append(conds, questionCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []exam.Question{}, nil
	}

	if filter != nil && filter.TestID != "" {
		conds = append(conds, "test_id = ?")
		args = append(args, filter.TestID)
	}

	q := repo.db.Rebind(selectQuestion + where(conds) + orderBy(ordering, questionCols, "order_index ASC"))
	var rows []questionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	questions := make([]exam.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.unpack())
	}
	return questions, nil
}

func (repo *examRepository) GetQuestion(ctx context.Context, id string) (exam.Question, error) {
	var row questionRow
	q := repo.db.Rebind(selectQuestion + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return exam.Question{}, repo.trapNoRowsErr(err, exam.ErrQuestionNotFound, "getting question")
	}
	return row.unpack(), nil
}

func (repo *examRepository) UpdateQuestion(ctx context.Context, qst exam.Question) (exam.Question, error) {
	var row questionRow
	q := repo.db.Rebind(`
		UPDATE question SET test_id = ?, type = ?, text = ?, options = ?, correct_answer = ?, marks = ?, order_index = ?
		WHERE id = ?
		RETURNING id, test_id, type, text, options, correct_answer, marks, order_index`)
	err := repo.db.GetContext(ctx, &row, q,
		qst.TestID, qst.Type, qst.Text, pq.StringArray(qst.Options),
		qst.CorrectAnswer, qst.Marks, qst.OrderIndex, qst.ID)
	if err != nil {
		return exam.Question{}, repo.trapNoRowsErr(err, exam.ErrQuestionNotFound, "updating question")
	}
	return row.unpack(), nil
}

func (repo *examRepository) DeleteQuestionsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "question", ids); err != nil {
		return errors.Wrap(err, "deleting questions")
	}
	return nil
}

// -------------------------------------------------------------- submissions

func (repo *examRepository) CreateSubmission(ctx context.Context, sub exam.Submission) (exam.Submission, error) {
	sub.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO test_submission (id, test_id, student_id, marks_obtained, grade, status, submit_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		sub.ID, sub.TestID, sub.StudentID, sub.MarksObtained,
		null.NewString(sub.Grade, sub.Grade != ""), sub.Status, sub.SubmitTime.UTC(), sub.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// lost the (test, student) race: carry on against the winner's row
			existing, gerr := repo.GetSubmissionForStudent(ctx, sub.TestID, sub.StudentID)
			if gerr != nil {
				return exam.Submission{}, core.NewConflictError("a submission for this test already exists")
			}
			existing.MarksObtained = sub.MarksObtained
			existing.Grade = sub.Grade
			existing.Status = sub.Status
			existing.SubmitTime = sub.SubmitTime
			existing.UpdatedAt = sub.UpdatedAt
			return repo.UpdateSubmission(ctx, existing)
		}
		return exam.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo *examRepository) QuerySubmissions(ctx context.Context, scope access.Scope, filter *exam.SubmissionQueryFilter, ordering []core.DBOrdering) ([]exam.Submission, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.StudentID != "":
		conds = append(conds, "student_id = ?")
		args = append(args, scope.StudentID)
	case scope.CourseInstructorID != "":
		conds = append(conds, tstSubmissionCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []exam.Submission{}, nil
	}

	if filter != nil {
		if filter.TestID != "" {
			conds = append(conds, "test_id = ?")
			args = append(args, filter.TestID)
		}
		if filter.StudentID != "" {
			conds = append(conds, "student_id = ?")
			args = append(args, filter.StudentID)
		}
	}

	q := repo.db.Rebind(selectTstSubmission + where(conds) + orderBy(ordering, tstSubmissionCols, "submit_time ASC"))
	var rows []testSubmissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	submissions := make([]exam.Submission, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, row.unpack())
	}
	return submissions, nil
}

func (repo *examRepository) GetSubmission(ctx context.Context, id string) (exam.Submission, error) {
	var row testSubmissionRow
	q := repo.db.Rebind(selectTstSubmission + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return exam.Submission{}, repo.trapNoRowsErr(err, exam.ErrSubmissionNotFound, "getting submission")
	}
	return row.unpack(), nil
}

func (repo *examRepository) GetSubmissionForStudent(ctx context.Context, testID, studentID string) (exam.Submission, error) {
	var row testSubmissionRow
	q := repo.db.Rebind(selectTstSubmission + " WHERE test_id = ? AND student_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, testID, studentID); err != nil {
		return exam.Submission{}, repo.trapNoRowsErr(err, exam.ErrSubmissionNotFound, "getting submission")
	}
	return row.unpack(), nil
}

func (repo *examRepository) UpdateSubmission(ctx context.Context, sub exam.Submission) (exam.Submission, error) {
	var row testSubmissionRow
	q := repo.db.Rebind(`
		UPDATE test_submission SET marks_obtained = ?, grade = ?, status = ?, submit_time = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, test_id, student_id, marks_obtained, grade, status, submit_time, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		sub.MarksObtained, null.NewString(sub.Grade, sub.Grade != ""), sub.Status,
		sub.SubmitTime.UTC(), sub.UpdatedAt.UTC(), sub.ID)
	if err != nil {
		return exam.Submission{}, repo.trapNoRowsErr(err, exam.ErrSubmissionNotFound, "updating submission")
	}
	return row.unpack(), nil
}

// ------------------------------------------------------------------ answers

func (repo *examRepository) CreateAnswer(ctx context.Context, ans exam.Answer) (exam.Answer, error) {
	ans.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO test_answer (id, submission_id, question_id, student_answer, is_correct, marks_awarded)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		ans.ID, ans.SubmissionID, ans.QuestionID, ans.StudentAnswer, ans.IsCorrect,
		null.Float64FromPtr(ans.MarksAwarded))
	if err != nil {
		if isUniqueViolation(err) {
			// lost the (submission, question) race: update the winner's row
			existing, gerr := repo.GetAnswerForQuestion(ctx, ans.SubmissionID, ans.QuestionID)
			if gerr != nil {
				return exam.Answer{}, core.NewConflictError("an answer for this question already exists")
			}
			existing.StudentAnswer = ans.StudentAnswer
			existing.IsCorrect = ans.IsCorrect
			existing.MarksAwarded = ans.MarksAwarded
			return repo.UpdateAnswer(ctx, existing)
		}
		return exam.Answer{}, errors.Wrap(err, "inserting answer")
	}
	return ans, nil
}

func (repo *examRepository) QueryAnswers(ctx context.Context, scope access.Scope, filter *exam.AnswerQueryFilter, ordering []core.DBOrdering) ([]exam.Answer, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.StudentID != "":
		conds = append(conds, answerStudentScope)
		args = append(args, scope.StudentID)
	case scope.CourseInstructorID != "":
		conds = append(conds, answerCourseScope)
		args = append(args, scope.CourseInstructorID)
	default:
		return []exam.Answer{}, nil
	}

	if filter != nil && filter.SubmissionID != "" {
		conds = append(conds, "submission_id = ?")
		args = append(args, filter.SubmissionID)
	}

	q := repo.db.Rebind(selectAnswer + where(conds) + orderBy(ordering, answerCols, "id ASC"))
	var rows []answerRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	answers := make([]exam.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.unpack())
	}
	return answers, nil
}

func (repo *examRepository) GetAnswer(ctx context.Context, id string) (exam.Answer, error) {
	var row answerRow
	q := repo.db.Rebind(selectAnswer + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return exam.Answer{}, repo.trapNoRowsErr(err, exam.ErrAnswerNotFound, "getting answer")
	}
	return row.unpack(), nil
}

func (repo *examRepository) GetAnswerForQuestion(ctx context.Context, submissionID, questionID string) (exam.Answer, error) {
	var row answerRow
	q := repo.db.Rebind(selectAnswer + " WHERE submission_id = ? AND question_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, submissionID, questionID); err != nil {
		return exam.Answer{}, repo.trapNoRowsErr(err, exam.ErrAnswerNotFound, "getting answer")
	}
	return row.unpack(), nil
}

func (repo *examRepository) UpdateAnswer(ctx context.Context, ans exam.Answer) (exam.Answer, error) {
	var row answerRow
	q := repo.db.Rebind(`
		UPDATE test_answer SET student_answer = ?, is_correct = ?, marks_awarded = ?
		WHERE id = ?
		RETURNING id, submission_id, question_id, student_answer, is_correct, marks_awarded`)
	err := repo.db.GetContext(ctx, &row, q,
		ans.StudentAnswer, ans.IsCorrect, null.Float64FromPtr(ans.MarksAwarded), ans.ID)
	if err != nil {
		return exam.Answer{}, repo.trapNoRowsErr(err, exam.ErrAnswerNotFound, "updating answer")
	}
	return row.unpack(), nil
}

func (repo *examRepository) CourseInstructor(ctx context.Context, courseID string) (string, error) {
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
