package library

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	ItemType       string    `json:"item_type,omitempty"`
	Category       string    `json:"category,omitempty"`
	CourseID       string    `json:"course,omitempty"`
	FileURL        string    `json:"file_url,omitempty"`
	UploadedByID   string    `json:"uploaded_by,omitempty"`
	TotalDownloads int       `json:"total_downloads"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	ItemID    string    `json:"item"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewItem contains information needed to create a new library Item.
type NewItem struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	ItemType    string `json:"item_type"`
	Category    string `json:"category"`
	CourseID    string `json:"course" validate:"omitempty,uuid4"`
	FileURL     string `json:"file_url" validate:"omitempty,url"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Description = core.CleanString(ni.Description)
	ni.ItemType = core.CleanString(ni.ItemType, true /* lower */)
	ni.Category = core.CleanString(ni.Category, true /* lower */)
	return validate.Struct(ni)
}

// UpdateItem defines what information may be provided to modify an existing
// Item. Zero-valued fields are left untouched.
type UpdateItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ItemType    string `json:"item_type"`
	Category    string `json:"category"`
	FileURL     string `json:"file_url" validate:"omitempty,url"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error {
	ui.Title = core.CleanString(ui.Title)
	ui.Description = core.CleanString(ui.Description)
	ui.ItemType = core.CleanString(ui.ItemType, true /* lower */)
	ui.Category = core.CleanString(ui.Category, true /* lower */)
	return validate.Struct(ui)
}

type QueryFilter struct {
	Search   string `query:"search"`
	ItemType string `query:"item_type"`
	Category string `query:"category"`
	CourseID string `query:"course"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.ItemType = core.CleanString(f.ItemType, true /* lower */)
	f.Category = core.CleanString(f.Category, true /* lower */)
	if f.CourseID = core.CleanString(f.CourseID); f.CourseID != "" {
		if _, err := uuid.Parse(f.CourseID); err != nil {
			f.CourseID = ""
		}
	}
}
