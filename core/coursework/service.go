package coursework

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrMaterialNotFound   = core.NewNotFoundError("material")
	ErrExamNotFound       = core.NewNotFoundError("exam")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// CreateMaterial & UpdateMaterial store the material & (re)place its contents atomically.
		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		QueryMaterials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		UpdateMaterial(ctx context.Context, mat Material) (Material, error)
		DeleteMaterial(ctx context.Context, id string) error

		CreateExam(ctx context.Context, exam Exam) (Exam, error)
		QueryExams(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		UpdateExam(ctx context.Context, exam Exam) (Exam, error)
		DeleteExam(ctx context.Context, id string) error
	}

	// Service manages the coursework of courses the caller was already authorized on.
	Service interface {
		CreateAssignment(ctx context.Context, crs school.Course, author user.User, na NewAssignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment, ua UpdateAssignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		CreateMaterial(ctx context.Context, crs school.Course, author user.User, nm NewMaterial) (Material, error)
		QueryMaterials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		UpdateMaterial(ctx context.Context, mat Material, um UpdateMaterial) (Material, error)
		DeleteMaterial(ctx context.Context, id string) error

		CreateExam(ctx context.Context, crs school.Course, author user.User, ne NewExam) (Exam, error)
		QueryExams(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		UpdateExam(ctx context.Context, exam Exam, ue UpdateExam) (Exam, error)
		DeleteExam(ctx context.Context, id string) error
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

// Assignments

func (svc *service) CreateAssignment(ctx context.Context, crs school.Course, author user.User, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	return svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:    crs.ID,
		Title:       na.Title,
		Description: na.Description,
		DueAt:       na.DueAt,
		MaxPoints:   na.MaxPoints,
		CreatedBy:   null.StringFrom(author.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) UpdateAssignment(ctx context.Context, asg Assignment, ua UpdateAssignment) (Assignment, error) {
	asg.Title = ua.Title
	asg.Description = *ua.Description
	asg.DueAt = ua.DueAt
	asg.MaxPoints = *ua.MaxPoints
	asg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, asg)
}

func (svc *service) DeleteAssignment(ctx context.Context, id string) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

// Materials

func makeContents(ncs []NewMaterialContent) []MaterialContent {
	contents := make([]MaterialContent, len(ncs))
	for i, nc := range ncs {
		contents[i] = MaterialContent{
			Position: i,
			Kind:     nc.Kind,
			Title:    nc.Title,
			Body:     nc.Body,
			URL:      nc.URL,
		}
	}
	return contents
}

func (svc *service) CreateMaterial(ctx context.Context, crs school.Course, author user.User, nm NewMaterial) (Material, error) {
	now := time.Now().UTC()
	return svc.repo.CreateMaterial(ctx, Material{
		CourseID:    crs.ID,
		Title:       nm.Title,
		Description: nm.Description,
		CreatedBy:   null.StringFrom(author.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
		Contents:    makeContents(nm.Contents),
	})
}

func (svc *service) QueryMaterials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error) {
	return svc.repo.QueryMaterials(ctx, filter, ordering)
}

func (svc *service) GetMaterial(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

func (svc *service) UpdateMaterial(ctx context.Context, mat Material, um UpdateMaterial) (Material, error) {
	mat.Title = um.Title
	mat.Description = *um.Description
	if um.Contents != nil {
		mat.Contents = makeContents(*um.Contents)
	}
	mat.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMaterial(ctx, mat)
}

func (svc *service) DeleteMaterial(ctx context.Context, id string) error {
	return svc.repo.DeleteMaterial(ctx, id)
}

// Exams

func (svc *service) CreateExam(ctx context.Context, crs school.Course, author user.User, ne NewExam) (Exam, error) {
	now := time.Now().UTC()
	return svc.repo.CreateExam(ctx, Exam{
		CourseID:        crs.ID,
		Title:           ne.Title,
		Description:     ne.Description,
		ScheduledAt:     ne.ScheduledAt,
		DurationMinutes: ne.DurationMinutes,
		MaxPoints:       ne.MaxPoints,
		Location:        ne.Location,
		CreatedBy:       null.StringFrom(author.ID),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) QueryExams(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error) {
	return svc.repo.QueryExams(ctx, filter, ordering)
}

func (svc *service) GetExam(ctx context.Context, id string) (Exam, error) {
	return svc.repo.GetExam(ctx, id)
}

func (svc *service) UpdateExam(ctx context.Context, exam Exam, ue UpdateExam) (Exam, error) {
	exam.Title = ue.Title
	exam.Description = *ue.Description
	exam.ScheduledAt = *ue.ScheduledAt
	exam.DurationMinutes = *ue.DurationMinutes
	exam.MaxPoints = *ue.MaxPoints
	exam.Location = *ue.Location
	exam.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateExam(ctx, exam)
}

func (svc *service) DeleteExam(ctx context.Context, id string) error {
	return svc.repo.DeleteExam(ctx, id)
}
