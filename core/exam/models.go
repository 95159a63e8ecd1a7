package exam

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

// Test statuses
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Submission statuses
const (
	SubmissionSubmitted = "submitted"
	SubmissionGraded    = "graded"
)

type Test struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course"`
	Title           string     `json:"title"`
	TestType        string     `json:"test_type,omitempty"`
	ScheduledDate   *time.Time `json:"scheduled_date,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      float64    `json:"total_marks"`
	Status          string     `json:"status"`
	CreatedByID     string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

type Question struct {
	ID            string   `json:"id"`
	TestID        string   `json:"test"`
	Type          string   `json:"type,omitempty"`
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Marks         float64  `json:"marks"`
	OrderIndex    int      `json:"order_index"`
}

type Submission struct {
	ID            string    `json:"id"`
	TestID        string    `json:"test"`
	StudentID     string    `json:"student"`
	MarksObtained float64   `json:"marks_obtained"`
	Grade         string    `json:"grade,omitempty"`
	Status        string    `json:"status"`
	SubmitTime    time.Time `json:"submit_time"` // UTC
	UpdatedAt     time.Time `json:"updated_at"`  // UTC
}

type Answer struct {
	ID            string   `json:"id"`
	SubmissionID  string   `json:"submission"`
	QuestionID    string   `json:"question"`
	StudentAnswer string   `json:"student_answer"`
	IsCorrect     bool     `json:"is_correct"`
	// MarksAwarded stays nil until grading records a value; aggregation then
	// falls back to inferring from IsCorrect and the question's marks.
	MarksAwarded *float64 `json:"marks_awarded,omitempty"`
}

// Correct reports whether a student's answer matches the expected one:
// both sides are trimmed and casefolded, and an empty expected answer never
// matches anything.
func Correct(studentAnswer, correctAnswer string) bool {
	want := strings.ToLower(strings.TrimSpace(correctAnswer))
	if want == "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(studentAnswer)) == want
}

// NewTest contains information needed to create a new Test.
type NewTest struct {
	CourseID        string     `json:"course" validate:"required,uuid4"`
	Title           string     `json:"title" validate:"required"`
	TestType        string     `json:"test_type"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=0"`
	TotalMarks      float64    `json:"total_marks" validate:"gte=0"`
	Status          string     `json:"status" validate:"omitempty,oneof=scheduled active completed"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.TestType = core.CleanString(nt.TestType, true /* lower */)
	nt.Status = core.CleanString(nt.Status, true /* lower */)
	if nt.Status == "" {
		nt.Status = StatusScheduled
	}
	return validate.Struct(nt)
}

// UpdateTest defines what information may be provided to modify an existing
// Test. Zero-valued fields are left untouched.
type UpdateTest struct {
	Title           string     `json:"title"`
	TestType        string     `json:"test_type"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=0"`
	TotalMarks      *float64   `json:"total_marks" validate:"omitempty,gte=0"`
	Status          string     `json:"status" validate:"omitempty,oneof=scheduled active completed"`
}

func (ut *UpdateTest) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	ut.TestType = core.CleanString(ut.TestType, true /* lower */)
	ut.Status = core.CleanString(ut.Status, true /* lower */)
	return validate.Struct(ut)
}

// NewQuestion contains information needed to create a new Question.
type NewQuestion struct {
	TestID        string   `json:"test" validate:"required,uuid4"`
	Type          string   `json:"type"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Marks         float64  `json:"marks" validate:"gte=0"`
	OrderIndex    int      `json:"order_index" validate:"gte=0"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Type = core.CleanString(nq.Type, true /* lower */)
	nq.Text = core.CleanString(nq.Text)
	return validate.Struct(nq)
}

// UpdateQuestion defines what information may be provided to modify an
// existing Question.
type UpdateQuestion struct {
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer *string  `json:"correct_answer"`
	Marks         *float64 `json:"marks" validate:"omitempty,gte=0"`
	OrderIndex    *int     `json:"order_index" validate:"omitempty,gte=0"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	uq.Type = core.CleanString(uq.Type, true /* lower */)
	uq.Text = core.CleanString(uq.Text)
	return validate.Struct(uq)
}

// AnswerInput is one answer inside a test submission payload. Clients send
// the answer text under a few historical keys; all are accepted.
type AnswerInput struct {
	QuestionID    string
	StudentAnswer string
}

func (ai *AnswerInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question   string  `json:"question"`
		QuestionID string  `json:"question_id"`
		Answer1    *string `json:"student_answer"`
		Answer2    *string `json:"studentAnswer"`
		Answer3    *string `json:"answer"`
		Answer4    *string `json:"student_answer_text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ai.QuestionID = raw.Question
	if ai.QuestionID == "" {
		ai.QuestionID = raw.QuestionID
	}
	for _, v := range []*string{raw.Answer1, raw.Answer2, raw.Answer3, raw.Answer4} {
		if v != nil {
			ai.StudentAnswer = *v
			break
		}
	}
	return nil
}

// SubmitTest is the bulk submission payload: the whole attempt in one call.
type SubmitTest struct {
	TestID  string        `json:"test" validate:"required,uuid4"`
	Answers []AnswerInput `json:"answers"`
}

func (st *SubmitTest) Validate(validate *validator.Validate) error {
	return validate.Struct(st)
}

// SaveAnswer upserts a single answer against an existing submission and
// triggers a recompute of the submission's aggregate.
type SaveAnswer struct {
	SubmissionID  string
	QuestionID    string
	StudentAnswer string
}

func (sa *SaveAnswer) UnmarshalJSON(data []byte) error {
	var raw struct {
		Submission   string `json:"submission"`
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ans AnswerInput
	if err := json.Unmarshal(data, &ans); err != nil {
		return err
	}
	sa.SubmissionID = raw.Submission
	if sa.SubmissionID == "" {
		sa.SubmissionID = raw.SubmissionID
	}
	sa.QuestionID = ans.QuestionID
	sa.StudentAnswer = ans.StudentAnswer
	return nil
}

func (sa *SaveAnswer) Validate(validate *validator.Validate) error {
	if sa.SubmissionID == "" || sa.QuestionID == "" {
		return core.NewValidationError(nil,
			core.FieldError{Field: "submission", Error: "submission and question are required"})
	}
	return nil
}

type TestQueryFilter struct {
	CourseID string `query:"course"`
	Status   string `query:"status"`
}

func (f *TestQueryFilter) Clean() {
	f.CourseID = cleanID(f.CourseID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type QuestionQueryFilter struct {
	TestID string `query:"test"`
}

func (f *QuestionQueryFilter) Clean() { f.TestID = cleanID(f.TestID) }

type SubmissionQueryFilter struct {
	TestID    string `query:"test"`
	StudentID string `query:"student"`
}

func (f *SubmissionQueryFilter) Clean() {
	f.TestID = cleanID(f.TestID)
	f.StudentID = cleanID(f.StudentID)
}

type AnswerQueryFilter struct {
	SubmissionID string `query:"submission"`
}

func (f *AnswerQueryFilter) Clean() { f.SubmissionID = cleanID(f.SubmissionID) }

func cleanID(id string) string {
	if id = core.CleanString(id); id == "" {
		return ""
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
