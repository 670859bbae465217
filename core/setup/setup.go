package setup

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

const setupLockName = "darasa:setup"

var (
	// errors
	ErrAlreadySetUp   = core.NewConflictError("the application is already set up")
	ErrInvalidCommand = core.NewFieldError("command", errors.New("command must be one of: up, status"))

	// AllowedCommands are the migration commands that may be triggered remotely.
	AllowedCommands = []string{"up", "status"}

	demoClasses = []school.NewClass{
		{Name: "Form 1A", Description: "First year, stream A"},
		{Name: "Form 1B", Description: "First year, stream B"},
	}
	demoSubjects = []school.NewSubject{
		{Name: "Mathematics", Code: "MATH"},
		{Name: "English", Code: "ENG"},
		{Name: "Science", Code: "SCI"},
	}
)

type (
	MigrateRequest struct {
		Command string `json:"command"`
	}

	MigrateResult struct {
		Command string `json:"command"`
		Version int64  `json:"version"`
	}

	// SetupRequest creates the first admin, and optionally a demo catalogue.
	SetupRequest struct {
		Admin user.NewUser `json:"admin"`
		Demo  bool         `json:"demo"`
	}

	SetupResult struct {
		Admin    user.User        `json:"admin"`
		Classes  []school.Class   `json:"classes"`
		Subjects []school.Subject `json:"subjects"`
	}

	Service interface {
		Migrate(ctx context.Context, command string) (MigrateResult, error)
		Seed(ctx context.Context, req SetupRequest) (SetupResult, error)
		// SeedDemo creates the demo classes & subjects, skipping those that already exist.
		SeedDemo(ctx context.Context) ([]school.Class, []school.Subject, error)
	}

	service struct {
		migrator  core.Migrator
		locker    core.Locker
		usrSvc    user.Service
		schoolSvc school.Service
	}
)

var _ Service = (*service)(nil)

func NewService(migrator core.Migrator, locker core.Locker, usrSvc user.Service, schoolSvc school.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(migrator, "migrator"),
		vala.IsNotNil(locker, "locker"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
	).CheckAndPanic()

	return &service{
		migrator:  migrator,
		locker:    locker,
		usrSvc:    usrSvc,
		schoolSvc: schoolSvc,
	}
}

func (svc *service) Migrate(ctx context.Context, command string) (MigrateResult, error) {
	command = core.CleanString(command, true /* lower */)
	if command == "" {
		command = "up"
	}
	if !core.ContainsString(AllowedCommands, command) {
		return MigrateResult{}, ErrInvalidCommand
	}
	if err := svc.migrator.Run(ctx, command); err != nil {
		return MigrateResult{}, errors.Wrap(err, "running migrations")
	}
	version, err := svc.migrator.Version(ctx)
	if err != nil {
		return MigrateResult{}, errors.Wrap(err, "getting DB version")
	}
	return MigrateResult{Command: command, Version: version}, nil
}

// Seed expects req.Admin to be validated already.
// Concurrent seeds are serialized so that only the first one creates an admin.
func (svc *service) Seed(ctx context.Context, req SetupRequest) (SetupResult, error) {
	unlock, err := svc.locker.Lock(ctx, setupLockName)
	if err != nil {
		return SetupResult{}, errors.Wrap(err, "locking setup")
	}
	defer unlock()

	hasAdmin, err := svc.usrSvc.HasAdmin(ctx)
	if err != nil {
		return SetupResult{}, err
	}
	if hasAdmin {
		return SetupResult{}, ErrAlreadySetUp
	}

	req.Admin.Role = user.RoleAdmin
	admin, err := svc.usrSvc.Create(ctx, req.Admin)
	if err != nil {
		return SetupResult{}, errors.Wrap(err, "creating admin")
	}
	res := SetupResult{Admin: admin}

	if req.Demo {
		if res.Classes, res.Subjects, err = svc.SeedDemo(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

func isConflict(err error) bool {
	var cErr *core.ConflictError
	return errors.As(err, &cErr)
}

func (svc *service) SeedDemo(ctx context.Context) ([]school.Class, []school.Subject, error) {
	classes := make([]school.Class, 0, len(demoClasses))
	for _, nc := range demoClasses {
		cls, err := svc.schoolSvc.CreateClass(ctx, nc)
		if err != nil {
			if isConflict(err) {
				continue
			}
			return nil, nil, errors.Wrap(err, "creating class "+nc.Name)
		}
		classes = append(classes, cls)
	}

	subjects := make([]school.Subject, 0, len(demoSubjects))
	for _, ns := range demoSubjects {
		subj, err := svc.schoolSvc.CreateSubject(ctx, ns)
		if err != nil {
			if isConflict(err) {
				continue
			}
			return nil, nil, errors.Wrap(err, "creating subject "+ns.Code)
		}
		subjects = append(subjects, subj)
	}
	return classes, subjects, nil
}
