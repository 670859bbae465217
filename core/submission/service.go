package submission

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("submission")
	ErrNoBackup         = core.NewNotFoundError("backup file")
	ErrAlreadySubmitted = core.NewConflictError("already submitted, cannot modify")
	ErrNotGradable      = core.NewConflictError("drafts cannot be graded")
	ErrNothingToSubmit  = core.NewValidationError(errors.New("nothing to submit: add some content, a file or a backup file"))

	errInvalidBackup = errors.New("invalid base64 content")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetStudentSubmission(ctx context.Context, studentID, assignmentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		// UpsertSubmission inserts or overwrites the student's submission while it is a DRAFT;
		// it returns ErrAlreadySubmitted otherwise.
		UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
		// GradeSubmission stores the grade of a submission that is not a DRAFT; it returns ErrNotGradable otherwise.
		GradeSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	// StudentGetter finds the students to notify.
	StudentGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Save(ctx context.Context, student user.User, asg coursework.Assignment, ss SaveSubmission) (Submission, error)
		Grade(ctx context.Context, grader user.User, sub Submission, asg coursework.Assignment, gs GradeSubmission) (Submission, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		Get(ctx context.Context, id string) (Submission, error)
		GetForStudent(ctx context.Context, studentID, assignmentID string) (Submission, error)
		GetBackup(ctx context.Context, id string) (Backup, error)
	}

	service struct {
		repo          Repository
		students      StudentGetter
		mailSvc       core.EmailService
		maxBackupSize int64
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students StudentGetter, mailSvc core.EmailService, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:          repo,
		students:      students,
		mailSvc:       mailSvc,
		maxBackupSize: conf.Submissions.MaxBackupSize,
	}
}

func (svc *service) decodeBackup(data string) ([]byte, error) {
	max := svc.maxBackupSize
	// DecodedLen is an upper bound: reject obviously oversized payloads before decoding them
	if upper := int64(base64.StdEncoding.DecodedLen(len(data))); max > 0 && upper > max+3 {
		return nil, core.NewFieldError("backup_file", tooLargeError(upper, max))
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, core.NewFieldError("backup_file", errInvalidBackup)
	}
	if max > 0 && int64(len(raw)) > max {
		return nil, core.NewFieldError("backup_file", tooLargeError(int64(len(raw)), max))
	}
	return raw, nil
}

func tooLargeError(size, max int64) error {
	return fmt.Errorf("file is too large (%s), the maximum size is %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max)))
}

func (svc *service) Save(ctx context.Context, student user.User, asg coursework.Assignment, ss SaveSubmission) (Submission, error) {
	now := NowFunc().UTC()

	sub, err := svc.repo.GetStudentSubmission(ctx, student.ID, asg.ID)
	switch {
	case err == nil:
		if !sub.IsDraft() {
			return Submission{}, ErrAlreadySubmitted
		}
	case core.IsNotFound(err):
		sub = Submission{
			AssignmentID: asg.ID,
			StudentID:    student.ID,
			Status:       StatusDraft,
			CreatedAt:    now,
		}
	default:
		return Submission{}, errors.Wrap(err, "finding submission")
	}

	if ss.Content != nil {
		sub.Content = *ss.Content
	}

	switch {
	case ss.FileURL != "":
		sub.FileURL = null.StringFrom(ss.FileURL)
		sub.FileName = null.StringFrom(ss.FileName)
	case ss.ClearFile:
		sub.FileURL = null.String{}
		sub.FileName = null.String{}
	}

	switch {
	case ss.BackupFile != "":
		raw, err := svc.decodeBackup(ss.BackupFile)
		if err != nil {
			return Submission{}, err
		}
		sub.BackupFile = raw
		sub.BackupFileSize = len(raw)
		sub.BackupFileName = null.StringFrom(ss.BackupFileName)
		sub.BackupFileType = null.StringFrom(http.DetectContentType(raw))
	case ss.ClearBackup:
		sub.BackupFile = nil
		sub.BackupFileSize = 0
		sub.BackupFileName = null.String{}
		sub.BackupFileType = null.String{}
	}

	if ss.Submit {
		if !sub.HasWork() {
			return Submission{}, ErrNothingToSubmit
		}
		sub.Status = StatusSubmitted
		sub.SubmittedAt = null.TimeFrom(now)
		sub.IsLate = asg.IsLateAt(now)
	}
	sub.UpdatedAt = now

	return svc.repo.UpsertSubmission(ctx, sub)
}

func (svc *service) Grade(ctx context.Context, grader user.User, sub Submission, asg coursework.Assignment, gs GradeSubmission) (Submission, error) {
	if sub.IsDraft() {
		return Submission{}, ErrNotGradable
	}
	if grade := *gs.Grade; grade < 0 || grade > asg.MaxPoints {
		return Submission{}, core.NewFieldError("grade", fmt.Errorf("grade must be between 0 and %v", asg.MaxPoints))
	}

	now := NowFunc().UTC()
	sub.Status = StatusGraded
	sub.Grade = null.Float64From(*gs.Grade)
	sub.Feedback = null.NewString(gs.Feedback, gs.Feedback != "")
	sub.GradedAt = null.TimeFrom(now)
	sub.GradedBy = null.StringFrom(grader.ID)
	sub.UpdatedAt = now

	sub, err := svc.repo.GradeSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}
	svc.notifyGraded(ctx, sub, asg)
	return sub, nil
}

func (svc *service) notifyGraded(ctx context.Context, sub Submission, asg coursework.Assignment) {
	student, err := svc.students.GetByID(ctx, sub.StudentID)
	if err != nil || student.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your work was graded",
		TemplateName: "submission_graded",
		TemplateData: map[string]interface{}{
			"Name":            student.Name,
			"AssignmentTitle": asg.Title,
			"Grade":           sub.Grade.Float64,
			"MaxPoints":       asg.MaxPoints,
			"Feedback":        sub.Feedback.String,
			"SubmissionID":    sub.ID,
		},
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *service) GetForStudent(ctx context.Context, studentID, assignmentID string) (Submission, error) {
	return svc.repo.GetStudentSubmission(ctx, studentID, assignmentID)
}

func (svc *service) GetBackup(ctx context.Context, id string) (Backup, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Backup{}, err
	}
	if len(sub.BackupFile) == 0 {
		return Backup{}, ErrNoBackup
	}
	return Backup{
		Data: sub.BackupFile,
		Name: sub.BackupFileName.String,
		Type: sub.BackupFileType.String,
	}, nil
}
