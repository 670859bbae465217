package report

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

// Statuses of gradebook entries, beside the submission ones.
const StatusMissing = "MISSING"

var NowFunc = time.Now // mockable

// GradebookEntry is the state of the work of one enrolled student for one assignment.
type GradebookEntry struct {
	StudentID       string       `json:"student_id" boil:"student_id"`
	StudentName     string       `json:"student_name" boil:"student_name"`
	AssignmentID    string       `json:"assignment_id" boil:"assignment_id"`
	AssignmentTitle string       `json:"assignment_title" boil:"assignment_title"`
	MaxPoints       float64      `json:"max_points" boil:"max_points"`
	SubmissionID    null.String  `json:"submission_id" boil:"submission_id"`
	Status          string       `json:"status" boil:"status"`
	Grade           null.Float64 `json:"grade" boil:"grade"`
	IsLate          bool         `json:"is_late" boil:"is_late"`
}

type Gradebook struct {
	Course  school.Course    `json:"course"`
	Entries []GradebookEntry `json:"entries"`
}

// Dashboard holds the counters shown to a user; which are set depends on the role.
type Dashboard struct {
	Role string `json:"role"`

	// admin
	Users    map[string]int `json:"users,omitempty"`
	Classes  int            `json:"classes,omitempty"`
	Subjects int            `json:"subjects,omitempty"`

	// all
	Courses int `json:"courses"`

	// teacher
	Assignments     int `json:"assignments,omitempty"`
	AwaitingGrading int `json:"awaiting_grading,omitempty"`

	// student
	OpenAssignments int          `json:"open_assignments,omitempty"`
	Graded          int          `json:"graded,omitempty"`
	AverageGrade    null.Float64 `json:"average_grade,omitempty"`
}

type (
	Repository interface {
		Gradebook(ctx context.Context, courseID string) ([]GradebookEntry, error)
		AdminDashboard(ctx context.Context) (Dashboard, error)
		TeacherDashboard(ctx context.Context, teacherID string) (Dashboard, error)
		// StudentDashboard counts as open the assignments not yet handed in & not past due at now.
		StudentDashboard(ctx context.Context, studentID string, now time.Time) (Dashboard, error)
	}

	Service interface {
		Gradebook(ctx context.Context, crs school.Course) (Gradebook, error)
		Dashboard(ctx context.Context, usr user.User) (Dashboard, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &service{repo: repo}
}

func (svc *service) Gradebook(ctx context.Context, crs school.Course) (Gradebook, error) {
	entries, err := svc.repo.Gradebook(ctx, crs.ID)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "loading gradebook")
	}
	return Gradebook{Course: crs, Entries: entries}, nil
}

func (svc *service) Dashboard(ctx context.Context, usr user.User) (Dashboard, error) {
	var (
		dash Dashboard
		err  error
	)
	switch usr.Role {
	case user.RoleAdmin:
		dash, err = svc.repo.AdminDashboard(ctx)
	case user.RoleTeacher:
		dash, err = svc.repo.TeacherDashboard(ctx, usr.ID)
	case user.RoleStudent:
		dash, err = svc.repo.StudentDashboard(ctx, usr.ID, NowFunc().UTC())
	default:
		return Dashboard{}, core.ErrPermissionDenied
	}
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading dashboard")
	}
	dash.Role = usr.Role
	return dash, nil
}
