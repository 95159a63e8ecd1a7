package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

// Assignment statuses. Only active and overdue are live; draft and archived
// linger in old rows and normalize to active when observed.
const (
	StatusActive  = "active"
	StatusOverdue = "overdue"
)

// Submission statuses
const (
	SubmissionSubmitted = "submitted"
	SubmissionGraded    = "graded"
)

type Assignment struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	TotalMarks  float64    `json:"total_marks"`
	Status      string     `json:"status"`
	CreatedByID string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// Normalize folds legacy statuses into active and flips past-due active
// assignments to overdue. Overdue is terminal; it never flips back even if
// the due date moves.
func (a *Assignment) Normalize(now time.Time) {
	if a.Status != StatusOverdue {
		a.Status = StatusActive
	}
	if a.Status == StatusActive && a.DueDate != nil && a.DueDate.Before(now) {
		a.Status = StatusOverdue
	}
}

type Submission struct {
	ID              string     `json:"id"`
	AssignmentID    string     `json:"assignment"`
	StudentID       string     `json:"student"`
	SubmissionText  string     `json:"submission_text,omitempty"`
	FileURL         string     `json:"file_url,omitempty"`
	Status          string     `json:"status"`
	MarksObtained   *float64   `json:"marks_obtained,omitempty"`
	Grade           string     `json:"grade,omitempty"`
	TeacherFeedback string     `json:"teacher_feedback,omitempty"`
	GradedByID      string     `json:"graded_by,omitempty"`
	GradedAt        *time.Time `json:"graded_at,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"`   // UTC
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	CourseID    string     `json:"course" validate:"required,uuid4"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	TotalMarks  float64    `json:"total_marks" validate:"gte=0"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an
// existing Assignment. Zero-valued fields are left untouched.
type UpdateAssignment struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	TotalMarks  *float64   `json:"total_marks" validate:"omitempty,gte=0"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	return validate.Struct(ua)
}

// SubmitAssignment upserts the requesting student's submission; at least one
// of the text or the file URL must be given.
type SubmitAssignment struct {
	AssignmentID   string `json:"assignment" validate:"required,uuid4"`
	SubmissionText string `json:"submission_text" validate:"required_without=FileURL"`
	FileURL        string `json:"file_url" validate:"omitempty,url"`
}

func (sa *SubmitAssignment) Validate(validate *validator.Validate) error {
	sa.SubmissionText = core.CleanString(sa.SubmissionText)
	sa.FileURL = core.CleanString(sa.FileURL)
	return validate.Struct(sa)
}

// GradeSubmission is a teacher's marking of a submission.
type GradeSubmission struct {
	MarksObtained   float64 `json:"marks_obtained" validate:"gte=0"`
	TeacherFeedback string  `json:"teacher_feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.TeacherFeedback = core.CleanString(gs.TeacherFeedback)
	return validate.Struct(gs)
}

type QueryFilter struct {
	CourseID string `query:"course"`
	Status   string `query:"status"`
}

func (f *QueryFilter) Clean() {
	f.CourseID = cleanID(f.CourseID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type SubmissionQueryFilter struct {
	AssignmentID string `query:"assignment"`
	StudentID    string `query:"student"`
	Status       string `query:"status"`
}

func (f *SubmissionQueryFilter) Clean() {
	f.AssignmentID = cleanID(f.AssignmentID)
	f.StudentID = cleanID(f.StudentID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

func cleanID(id string) string {
	if id = core.CleanString(id); id == "" {
		return ""
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
