package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/submission"
)

const (
	submissionColumns = `s.id, s.assignment_id, s.student_id, s.status, s.content, s.file_url, s.file_name,
		s.backup_file_name, s.backup_file_type, COALESCE(length(s.backup_file), 0) AS backup_file_size,
		s.grade, s.feedback, s.is_late, s.submitted_at, s.graded_at, s.graded_by, s.created_at, s.updated_at,
		u.name AS student_name, a.title AS assignment_title`
	submissionFrom = ` FROM submission s
		JOIN "user" u ON u.id = s.student_id
		JOIN assignment a ON a.id = s.assignment_id`

	upsertSubmission = `INSERT INTO submission (id, assignment_id, student_id, status, content, file_url, file_name,
			backup_file, backup_file_name, backup_file_type, is_late, submitted_at, created_at, updated_at)
		VALUES (:id, :assignment_id, :student_id, :status, :content, :file_url, :file_name,
			:backup_file, :backup_file_name, :backup_file_type, :is_late, :submitted_at, :created_at, :updated_at)
		ON CONFLICT ON CONSTRAINT submission_student_assignment_key DO UPDATE SET
			status = EXCLUDED.status,
			content = EXCLUDED.content,
			file_url = EXCLUDED.file_url,
			file_name = EXCLUDED.file_name,
			backup_file = EXCLUDED.backup_file,
			backup_file_name = EXCLUDED.backup_file_name,
			backup_file_type = EXCLUDED.backup_file_type,
			is_late = EXCLUDED.is_late,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at
		WHERE submission.status = 'DRAFT'
		RETURNING id, created_at`
)

var submissionOrderingFields = map[string]string{
	"student_name": "u.name",
	"status":       "s.status",
	"grade":        "s.grade",
	"submitted_at": "s.submitted_at",
	"created_at":   "s.created_at",
	"updated_at":   "s.updated_at",
}

type submissionRow struct {
	ID              string       `db:"id"`
	AssignmentID    string       `db:"assignment_id"`
	StudentID       string       `db:"student_id"`
	Status          string       `db:"status"`
	Content         string       `db:"content"`
	FileURL         null.String  `db:"file_url"`
	FileName        null.String  `db:"file_name"`
	BackupFile      []byte       `db:"backup_file"`
	BackupFileName  null.String  `db:"backup_file_name"`
	BackupFileType  null.String  `db:"backup_file_type"`
	BackupFileSize  int          `db:"backup_file_size"`
	Grade           null.Float64 `db:"grade"`
	Feedback        null.String  `db:"feedback"`
	IsLate          bool         `db:"is_late"`
	SubmittedAt     null.Time    `db:"submitted_at"`
	GradedAt        null.Time    `db:"graded_at"`
	GradedBy        null.String  `db:"graded_by"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
	StudentName     string       `db:"student_name"`
	AssignmentTitle string       `db:"assignment_title"`
}

func (r submissionRow) toSubmission() submission.Submission {
	sub := submission.Submission(r)
	sub.CreatedAt, sub.UpdatedAt = sub.CreatedAt.UTC(), sub.UpdatedAt.UTC()
	return sub
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) get(ctx context.Context, cond string, args ...interface{}) (submission.Submission, error) {
	var row submissionRow
	q := "SELECT " + submissionColumns + ", s.backup_file" + submissionFrom + " WHERE " + cond
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound)
	}
	return row.toSubmission(), nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !isUUID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	return repo.get(ctx, "s.id = $1", id)
}

func (repo *submissionRepository) GetStudentSubmission(ctx context.Context, studentID, assignmentID string) (submission.Submission, error) {
	if !isUUID(studentID) || !isUUID(assignmentID) {
		return submission.Submission{}, submission.ErrNotFound
	}
	return repo.get(ctx, "s.student_id = $1 AND s.assignment_id = $2", studentID, assignmentID)
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	w := new(where)
	if filter != nil {
		if filter.AssignmentID != "" {
			w.add("s.assignment_id = ?", filter.AssignmentID)
		}
		if filter.StudentID != "" {
			w.add("s.student_id = ?", filter.StudentID)
		}
		if filter.CourseID != "" {
			w.add("a.course_id = ?", filter.CourseID)
		}
		if filter.TeacherID != "" {
			w.add("EXISTS (SELECT 1 FROM course c WHERE c.id = a.course_id AND c.teacher_id = ?)", filter.TeacherID)
		}
		if len(filter.Statuses) > 0 {
			w.addIn("s.status", filter.Statuses)
		}
	}
	q, args, err := w.build(repo.db, "SELECT "+submissionColumns+submissionFrom+w.String()+
		orderBy(ordering, submissionOrderingFields, "u.name ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]submissionRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

func (repo *submissionRepository) UpsertSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	row := submissionRow(sub)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	q, args, err := sqlx.Named(upsertSubmission, row)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}

	var (
		id        string
		createdAt time.Time
	)
	if err = repo.db.QueryRowxContext(ctx, repo.db.Rebind(q), args...).Scan(&id, &createdAt); err != nil {
		// the conflicting row is no longer a draft
		return submission.Submission{}, trapNoRowsErr(translateErr(err, nil), submission.ErrAlreadySubmitted)
	}
	return repo.GetSubmission(ctx, id)
}

func (repo *submissionRepository) GradeSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	q := `UPDATE submission SET status = $2, grade = $3, feedback = $4, graded_at = $5, graded_by = $6, updated_at = $7
		WHERE id = $1 AND status <> 'DRAFT'`
	res, err := repo.db.ExecContext(ctx, q, sub.ID, submission.StatusGraded, sub.Grade, sub.Feedback, sub.GradedAt, sub.GradedBy, sub.UpdatedAt)
	if err != nil {
		return submission.Submission{}, translateErr(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return submission.Submission{}, err
	}
	if n == 0 {
		if _, err = repo.GetSubmission(ctx, sub.ID); err != nil {
			return submission.Submission{}, err
		}
		return submission.Submission{}, submission.ErrNotGradable
	}
	return repo.GetSubmission(ctx, sub.ID)
}
