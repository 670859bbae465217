package coursework

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Material content kinds
const (
	KindText  = "TEXT"
	KindVideo = "VIDEO"
	KindLink  = "LINK"

	DefaultMaxPoints = 100
)

var AllKinds = []string{KindText, KindVideo, KindLink}

type Assignment struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"course_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueAt       null.Time   `json:"due_at"` // UTC
	MaxPoints   float64     `json:"max_points"`
	CreatedBy   null.String `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsLateAt reports whether work handed in at t is past the due date.
func (a Assignment) IsLateAt(t time.Time) bool {
	return a.DueAt.Valid && t.After(a.DueAt.Time)
}

type Material struct {
	ID          string            `json:"id"`
	CourseID    string            `json:"course_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	CreatedBy   null.String       `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Contents    []MaterialContent `json:"contents"`
}

// MaterialContent is one item of a Material; contents are ordered by Position.
type MaterialContent struct {
	ID         string `json:"id"`
	MaterialID string `json:"material_id"`
	Position   int    `json:"position"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url"`
}

type Exam struct {
	ID              string      `json:"id"`
	CourseID        string      `json:"course_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	ScheduledAt     time.Time   `json:"scheduled_at"` // UTC
	DurationMinutes int         `json:"duration_minutes"`
	MaxPoints       float64     `json:"max_points"`
	Location        string      `json:"location"`
	CreatedBy       null.String `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type NewAssignment struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueAt       null.Time `json:"due_at"`
	MaxPoints   float64   `json:"max_points" validate:"omitempty,gt=0,max=10000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = strings.TrimSpace(na.Description)
	if na.MaxPoints == 0 {
		na.MaxPoints = DefaultMaxPoints
	}
	if na.DueAt.Valid {
		na.DueAt.Time = na.DueAt.Time.UTC()
	}
	return validate.Struct(na)
}

// UpdateAssignment keeps the original values of omitted fields.
type UpdateAssignment struct {
	Title       string    `json:"title" validate:"max=200"`
	Description *string   `json:"description" validate:"omitempty,max=10000"`
	DueAt       null.Time `json:"due_at"`
	ClearDueAt  bool      `json:"clear_due_at"`
	MaxPoints   *float64  `json:"max_points" validate:"omitempty,gt=0,max=10000"`
}

func (ua *UpdateAssignment) Validate(orig Assignment, validate *validator.Validate) error {
	if title := core.CleanString(ua.Title); title != "" {
		ua.Title = title
	} else {
		ua.Title = orig.Title
	}
	if ua.Description == nil {
		ua.Description = &orig.Description
	} else {
		desc := strings.TrimSpace(*ua.Description)
		ua.Description = &desc
	}
	switch {
	case ua.ClearDueAt:
		ua.DueAt = null.Time{}
	case ua.DueAt.Valid:
		ua.DueAt.Time = ua.DueAt.Time.UTC()
	default:
		ua.DueAt = orig.DueAt
	}
	if ua.MaxPoints == nil {
		ua.MaxPoints = &orig.MaxPoints
	}
	return validate.Struct(ua)
}

type NewMaterialContent struct {
	Kind  string `json:"kind" validate:"required,contentkind"`
	Title string `json:"title" validate:"max=200"`
	Body  string `json:"body" validate:"max=50000"`
	URL   string `json:"url" validate:"omitempty,max=2000,fileurl"`
}

func (nc *NewMaterialContent) clean() {
	nc.Kind = strings.ToUpper(core.CleanString(nc.Kind))
	nc.Title = core.CleanString(nc.Title)
	nc.Body = strings.TrimSpace(nc.Body)
	nc.URL = strings.TrimSpace(nc.URL)
}

type NewMaterial struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=10000"`
	Contents    []NewMaterialContent `json:"contents" validate:"max=100,dive"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = strings.TrimSpace(nm.Description)
	for i := range nm.Contents {
		nm.Contents[i].clean()
	}
	return validate.Struct(nm)
}

// UpdateMaterial replaces the whole content list when Contents is provided.
type UpdateMaterial struct {
	Title       string                `json:"title" validate:"max=200"`
	Description *string               `json:"description" validate:"omitempty,max=10000"`
	Contents    *[]NewMaterialContent `json:"contents" validate:"omitempty,max=100,dive"`
}

func (um *UpdateMaterial) Validate(orig Material, validate *validator.Validate) error {
	if title := core.CleanString(um.Title); title != "" {
		um.Title = title
	} else {
		um.Title = orig.Title
	}
	if um.Description == nil {
		um.Description = &orig.Description
	} else {
		desc := strings.TrimSpace(*um.Description)
		um.Description = &desc
	}
	if um.Contents != nil {
		for i := range *um.Contents {
			(*um.Contents)[i].clean()
		}
	}
	return validate.Struct(um)
}

type NewExam struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=10000"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0,max=1440"`
	MaxPoints       float64   `json:"max_points" validate:"omitempty,gt=0,max=10000"`
	Location        string    `json:"location" validate:"max=200"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = strings.TrimSpace(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	ne.ScheduledAt = ne.ScheduledAt.UTC()
	if ne.MaxPoints == 0 {
		ne.MaxPoints = DefaultMaxPoints
	}
	return validate.Struct(ne)
}

type UpdateExam struct {
	Title           string     `json:"title" validate:"max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=10000"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0,max=1440"`
	MaxPoints       *float64   `json:"max_points" validate:"omitempty,gt=0,max=10000"`
	Location        *string    `json:"location" validate:"omitempty,max=200"`
}

func (ue *UpdateExam) Validate(orig Exam, validate *validator.Validate) error {
	if title := core.CleanString(ue.Title); title != "" {
		ue.Title = title
	} else {
		ue.Title = orig.Title
	}
	if ue.Description == nil {
		ue.Description = &orig.Description
	} else {
		desc := strings.TrimSpace(*ue.Description)
		ue.Description = &desc
	}
	if ue.ScheduledAt == nil {
		ue.ScheduledAt = &orig.ScheduledAt
	} else {
		at := ue.ScheduledAt.UTC()
		ue.ScheduledAt = &at
	}
	if ue.DurationMinutes == nil {
		ue.DurationMinutes = &orig.DurationMinutes
	}
	if ue.MaxPoints == nil {
		ue.MaxPoints = &orig.MaxPoints
	}
	if ue.Location == nil {
		ue.Location = &orig.Location
	} else {
		loc := core.CleanString(*ue.Location)
		ue.Location = &loc
	}
	return validate.Struct(ue)
}

// QueryFilter applies to assignments, materials & exams.
// From & To bound Assignment.DueAt and Exam.ScheduledAt; they are ignored for materials.
type QueryFilter struct {
	CourseIDs []string  `query:"course_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (qf *QueryFilter) Clean() {
	ids := make([]string, 0, len(qf.CourseIDs))
	for _, id := range qf.CourseIDs {
		if id = core.CleanString(id, true /* lower */); id != "" {
			ids = append(ids, id)
		}
	}
	qf.CourseIDs = ids
}
