package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

// Course statuses
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
)

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
	EnrollmentSuspended = "suspended"
)

// Lecture progress statuses
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

type Course struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category,omitempty"`
	Level            string     `json:"level,omitempty"`
	Status           string     `json:"status"`
	InstructorID     string     `json:"instructor,omitempty"`
	IsPublished      bool       `json:"is_published"`
	TotalLectures    int        `json:"total_lectures"`
	TotalEnrollments int        `json:"total_enrollments"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"` // UTC
	UpdatedAt        time.Time  `json:"updated_at"` // UTC
}

type Lecture struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course"`
	Title           string    `json:"title"`
	OrderIndex      int       `json:"order_index"`
	IsPublished     bool      `json:"is_published"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

type Enrollment struct {
	ID                 string    `json:"id"`
	CourseID           string    `json:"course"`
	StudentID          string    `json:"student"`
	Status             string    `json:"status"`
	ProgressPercentage float64   `json:"progress_percentage"`
	EnrollmentDate     time.Time `json:"enrollment_date"` // UTC
	UpdatedAt          time.Time `json:"updated_at"`      // UTC
}

type LectureProgress struct {
	ID               string     `json:"id"`
	LectureID        string     `json:"lecture"`
	StudentID        string     `json:"student"`
	Status           string     `json:"status"`
	WatchTimeMinutes int        `json:"watch_time_minutes"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"` // UTC
	UpdatedAt        time.Time  `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Level        string     `json:"level"`
	Status       string     `json:"status" validate:"omitempty,oneof=draft active inactive archived"`
	InstructorID string     `json:"instructor" validate:"omitempty,uuid4"`
	IsPublished  bool       `json:"is_published"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	if nc.Status == "" {
		nc.Status = StatusActive
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Zero-valued fields are left untouched.
type UpdateCourse struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Level        string     `json:"level"`
	Status       string     `json:"status" validate:"omitempty,oneof=draft active inactive archived"`
	InstructorID string     `json:"instructor" validate:"omitempty,uuid4"`
	IsPublished  *bool      `json:"is_published"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	uc.Category = core.CleanString(uc.Category, true /* lower */)
	uc.Level = core.CleanString(uc.Level, true /* lower */)
	uc.Status = core.CleanString(uc.Status, true /* lower */)
	return validate.Struct(uc)
}

// NewLecture contains information needed to create a new Lecture.
type NewLecture struct {
	CourseID        string `json:"course" validate:"required,uuid4"`
	Title           string `json:"title" validate:"required"`
	OrderIndex      int    `json:"order_index" validate:"gte=0"`
	IsPublished     bool   `json:"is_published"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

func (nl *NewLecture) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

// UpdateLecture defines what information may be provided to modify an existing Lecture.
type UpdateLecture struct {
	Title           string `json:"title"`
	OrderIndex      *int   `json:"order_index" validate:"omitempty,gte=0"`
	IsPublished     *bool  `json:"is_published"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,gte=0"`
}

func (ul *UpdateLecture) Validate(validate *validator.Validate) error {
	ul.Title = core.CleanString(ul.Title)
	return validate.Struct(ul)
}

// UpdateEnrollment defines what information may be provided to modify an
// existing Enrollment.
type UpdateEnrollment struct {
	Status             string   `json:"status" validate:"omitempty,oneof=active completed dropped suspended"`
	ProgressPercentage *float64 `json:"progress_percentage" validate:"omitempty,gte=0,lte=100"`
}

func (ue *UpdateEnrollment) Validate(validate *validator.Validate) error {
	ue.Status = core.CleanString(ue.Status, true /* lower */)
	return validate.Struct(ue)
}

// SaveProgress upserts a student's progress on a lecture.
type SaveProgress struct {
	LectureID        string `json:"lecture" validate:"required,uuid4"`
	Status           string `json:"status" validate:"omitempty,oneof=not_started in_progress completed"`
	WatchTimeMinutes int    `json:"watch_time_minutes" validate:"gte=0"`
}

func (sp *SaveProgress) Validate(validate *validator.Validate) error {
	sp.Status = core.CleanString(sp.Status, true /* lower */)
	if sp.Status == "" {
		sp.Status = ProgressInProgress
	}
	return validate.Struct(sp)
}

// CourseQueryFilter narrows course listings. Scoping is applied first;
// these only ever shrink the visible set.
type CourseQueryFilter struct {
	Search       string `query:"search"`
	Category     string `query:"category"`
	Level        string `query:"level"`
	Status       string `query:"status"`
	InstructorID string `query:"instructor"`
}

func (f *CourseQueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Category = core.CleanString(f.Category, true /* lower */)
	f.Level = core.CleanString(f.Level, true /* lower */)
	f.Status = core.CleanString(f.Status, true /* lower */)
	f.InstructorID = cleanID(f.InstructorID)
}

func (f *CourseQueryFilter) IsEmpty() bool {
	return f == nil || *f == CourseQueryFilter{}
}

type LectureQueryFilter struct {
	CourseID string `query:"course"`
}

func (f *LectureQueryFilter) Clean() { f.CourseID = cleanID(f.CourseID) }

type EnrollmentQueryFilter struct {
	CourseID  string `query:"course"`
	StudentID string `query:"student"`
	Status    string `query:"status"`
}

func (f *EnrollmentQueryFilter) Clean() {
	f.CourseID = cleanID(f.CourseID)
	f.StudentID = cleanID(f.StudentID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type ProgressQueryFilter struct {
	LectureID string `query:"lecture"`
	StudentID string `query:"student"`
}

func (f *ProgressQueryFilter) Clean() {
	f.LectureID = cleanID(f.LectureID)
	f.StudentID = cleanID(f.StudentID)
}

// cleanID drops filter values that cannot be ids instead of failing the query.
func cleanID(id string) string {
	if id = core.CleanString(id); id == "" {
		return ""
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
