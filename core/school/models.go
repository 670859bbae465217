package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Class struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Subject struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Code        string    `json:"code" db:"code"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Course allocates a Subject of a Class to a teacher.
type Course struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	TeacherID string    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// read-only
	ClassName   string `json:"class_name"`
	SubjectName string `json:"subject_name"`
	SubjectCode string `json:"subject_code"`
	TeacherName string `json:"teacher_name"`
}

// Enrollment makes a student a member of a Class.
type Enrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ClassID   string    `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`

	// read-only
	StudentName string `json:"student_name"`
	ClassName   string `json:"class_name"`
}

type NewClass struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass keeps the original values of empty fields.
type UpdateClass struct {
	Name        string  `json:"name" validate:"max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Description == nil {
		uc.Description = &orig.Description
	} else {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=20,alphanum_"`
	Description string `json:"description" validate:"max=2000"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = cleanCode(ns.Code)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name        string  `json:"name" validate:"max=100"`
	Code        string  `json:"code" validate:"omitempty,max=20,alphanum_"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (us *UpdateSubject) Validate(orig Subject, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if code := cleanCode(us.Code); code != "" {
		us.Code = code
	} else {
		us.Code = orig.Code
	}
	if us.Description == nil {
		us.Description = &orig.Description
	} else {
		desc := core.CleanString(*us.Description)
		us.Description = &desc
	}
	return validate.Struct(us)
}

type NewCourse struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	SubjectID string `json:"subject_id" validate:"required,uuid"`
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.ClassID = core.CleanString(nc.ClassID, true /* lower */)
	nc.SubjectID = core.CleanString(nc.SubjectID, true /* lower */)
	nc.TeacherID = core.CleanString(nc.TeacherID, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse reassigns a Course to another teacher.
type UpdateCourse struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.TeacherID = core.CleanString(uc.TeacherID, true /* lower */)
	return validate.Struct(uc)
}

type NewEnrollment struct {
	UserID  string `json:"user_id" validate:"required,uuid"`
	ClassID string `json:"class_id" validate:"required,uuid"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.UserID = core.CleanString(ne.UserID, true /* lower */)
	ne.ClassID = core.CleanString(ne.ClassID, true /* lower */)
	return validate.Struct(ne)
}

type CatalogFilter struct {
	Search string `query:"search"`
}

func (cf *CatalogFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
}

type CourseFilter struct {
	ClassID   string `query:"class_id"`
	SubjectID string `query:"subject_id"`
	TeacherID string `query:"teacher_id"`
	StudentID string `query:"student_id"` // courses of the classes the student is enrolled in
}

func (cf *CourseFilter) Clean() {
	cf.ClassID = core.CleanString(cf.ClassID, true /* lower */)
	cf.SubjectID = core.CleanString(cf.SubjectID, true /* lower */)
	cf.TeacherID = core.CleanString(cf.TeacherID, true /* lower */)
	cf.StudentID = core.CleanString(cf.StudentID, true /* lower */)
}

type EnrollmentFilter struct {
	ClassID string `query:"class_id"`
	UserID  string `query:"user_id"`
}

func (ef *EnrollmentFilter) Clean() {
	ef.ClassID = core.CleanString(ef.ClassID, true /* lower */)
	ef.UserID = core.CleanString(ef.UserID, true /* lower */)
}

func cleanCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}
