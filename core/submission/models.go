package submission

import (
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Statuses
const (
	StatusDraft     = "DRAFT"
	StatusSubmitted = "SUBMITTED"
	StatusGraded    = "GRADED"
)

var AllStatuses = []string{StatusDraft, StatusSubmitted, StatusGraded}

// Submission is the work of one student for one assignment.
type Submission struct {
	ID             string       `json:"id"`
	AssignmentID   string       `json:"assignment_id"`
	StudentID      string       `json:"student_id"`
	Status         string       `json:"status"`
	Content        string       `json:"content"`
	FileURL        null.String  `json:"file_url"`
	FileName       null.String  `json:"file_name"`
	BackupFile     []byte       `json:"-"`
	BackupFileName null.String  `json:"backup_file_name"`
	BackupFileType null.String  `json:"backup_file_type"`
	BackupFileSize int          `json:"backup_file_size"`
	Grade          null.Float64 `json:"grade"`
	Feedback       null.String  `json:"feedback"`
	IsLate         bool         `json:"is_late"`
	SubmittedAt    null.Time    `json:"submitted_at"` // UTC
	GradedAt       null.Time    `json:"graded_at"`    // UTC
	GradedBy       null.String  `json:"graded_by"`
	CreatedAt      time.Time    `json:"created_at"` // UTC
	UpdatedAt      time.Time    `json:"updated_at"` // UTC

	// read-only
	StudentName     string `json:"student_name"`
	AssignmentTitle string `json:"assignment_title"`
}

func (s Submission) IsDraft() bool { return s.Status == StatusDraft }

// HasWork reports whether there is anything to hand in.
func (s Submission) HasWork() bool {
	return strings.TrimSpace(s.Content) != "" || s.FileURL.Valid || s.BackupFileSize > 0
}

// Backup is the file stored along a submission, in case the uploaded one goes missing.
type Backup struct {
	Data []byte
	Name string
	Type string
}

// SaveSubmission saves a draft, or hands it in when Submit is set.
// Omitted values keep those of the current draft.
type SaveSubmission struct {
	Content        *string `json:"content" validate:"omitempty,max=100000"`
	FileURL        string  `json:"file_url" validate:"omitempty,max=2000,fileurl"`
	FileName       string  `json:"file_name" validate:"max=255"`
	BackupFile     string  `json:"backup_file"` // base64
	BackupFileName string  `json:"backup_file_name" validate:"max=255"`
	ClearFile      bool    `json:"clear_file"`
	ClearBackup    bool    `json:"clear_backup"`
	Submit         bool    `json:"submit"`
}

func (ss *SaveSubmission) Validate(validate *validator.Validate) error {
	ss.FileURL = strings.TrimSpace(ss.FileURL)
	ss.FileName = core.CleanString(ss.FileName)
	if ss.FileURL != "" && ss.FileName == "" {
		ss.FileName = path.Base(ss.FileURL)
	}
	ss.BackupFile = strings.TrimSpace(ss.BackupFile)
	ss.BackupFileName = core.CleanString(ss.BackupFileName)
	if ss.BackupFile != "" && ss.BackupFileName == "" {
		ss.BackupFileName = "backup"
	}
	return validate.Struct(ss)
}

type GradeSubmission struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback string   `json:"feedback" validate:"max=10000"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = strings.TrimSpace(gs.Feedback)
	return validate.Struct(gs)
}

type QueryFilter struct {
	AssignmentID string   `query:"assignment_id"`
	StudentID    string   `query:"student_id"`
	CourseID     string   `query:"course_id"`
	TeacherID    string   `query:"teacher_id"` // submissions to the courses of the teacher
	Statuses     []string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.AssignmentID = core.CleanString(qf.AssignmentID, true /* lower */)
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.CourseID = core.CleanString(qf.CourseID, true /* lower */)
	qf.TeacherID = core.CleanString(qf.TeacherID, true /* lower */)
	statuses := make([]string, 0, len(qf.Statuses))
	for _, st := range qf.Statuses {
		if st = strings.ToUpper(core.CleanString(st)); core.ContainsString(AllStatuses, st) {
			statuses = append(statuses, st)
		}
	}
	qf.Statuses = statuses
}
