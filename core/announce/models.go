package announce

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Channels
const ChannelEmail = "email"

type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Audience    string    `json:"audience"`
	Priority    string    `json:"priority"`
	Channels    []string  `json:"channels,omitempty"`
	CreatedByID string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewAnnouncement contains information needed to create a new Announcement.
type NewAnnouncement struct {
	Title    string   `json:"title" validate:"required"`
	Body     string   `json:"body" validate:"required"`
	Audience string   `json:"audience" validate:"omitempty,oneof=all students teachers"`
	Priority string   `json:"priority" validate:"omitempty,oneof=low normal high"`
	Channels []string `json:"channels" validate:"dive,oneof=email"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	na.Audience = core.CleanString(na.Audience, true /* lower */)
	if na.Audience == "" {
		na.Audience = AudienceAll
	}
	na.Priority = core.CleanString(na.Priority, true /* lower */)
	if na.Priority == "" {
		na.Priority = PriorityNormal
	}
	return validate.Struct(na)
}

// UpdateAnnouncement defines what information may be provided to modify an
// existing Announcement.
type UpdateAnnouncement struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Audience string   `json:"audience" validate:"omitempty,oneof=all students teachers"`
	Priority string   `json:"priority" validate:"omitempty,oneof=low normal high"`
	Channels []string `json:"channels" validate:"dive,oneof=email"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Body = core.CleanString(ua.Body)
	ua.Audience = core.CleanString(ua.Audience, true /* lower */)
	ua.Priority = core.CleanString(ua.Priority, true /* lower */)
	return validate.Struct(ua)
}

type QueryFilter struct {
	Audience string `query:"audience"`
	Priority string `query:"priority"`
}

func (f *QueryFilter) Clean() {
	f.Audience = core.CleanString(f.Audience, true /* lower */)
	f.Priority = core.CleanString(f.Priority, true /* lower */)
}
