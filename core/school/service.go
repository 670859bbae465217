package school

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrClassNotFound      = core.NewNotFoundError("class")
	ErrSubjectNotFound    = core.NewNotFoundError("subject")
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")

	ErrClassExists       = core.NewConflictError("a class with this name already exists")
	ErrSubjectNameExists = core.NewConflictError("a subject with this name already exists")
	ErrSubjectCodeExists = core.NewConflictError("a subject with this code already exists")
	ErrCourseExists      = core.NewConflictError("a course for this class and subject already exists")
	ErrAlreadyEnrolled   = core.NewConflictError("this student is already enrolled in this class")
	ErrTeacherHasCourses = core.NewConflictError("this teacher still teaches courses; reassign them first")

	errNotATeacher = errors.New("user is not an active teacher")
	errNotAStudent = errors.New("user is not an active student")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		QueryClasses(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		QuerySubjects(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		UpdateSubject(ctx context.Context, subj Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error

		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter *EnrollmentFilter) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id string) error
		IsEnrolled(ctx context.Context, userID, classID string) (bool, error)
	}

	// UserGetter finds the users courses & enrollments point to.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class, uc UpdateClass) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		UpdateSubject(ctx context.Context, subj Subject, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error

		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context, filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter *EnrollmentFilter) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		Unenroll(ctx context.Context, id string) error

		// AuthorizeCourse returns the Course if usr may read it (or write to it, when write is set):
		// admins always can, the course teacher can read & write, enrolled students can only read.
		AuthorizeCourse(ctx context.Context, usr user.User, courseID string, write bool) (Course, error)
	}

	service struct {
		repo  Repository
		users UserGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserGetter) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()

	return &service{repo: repo, users: users}
}

// Classes

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryClasses(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) UpdateClass(ctx context.Context, cls Class, uc UpdateClass) (Class, error) {
	cls.Name = uc.Name
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) DeleteClass(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Code:        ns.Code,
		Description: ns.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QuerySubjects(ctx context.Context, filter *CatalogFilter, ordering []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter, ordering)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) UpdateSubject(ctx context.Context, subj Subject, us UpdateSubject) (Subject, error) {
	subj.Name = us.Name
	subj.Code = us.Code
	if us.Description != nil {
		subj.Description = *us.Description
	}
	subj.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubject(ctx, subj)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

// Courses

func (svc *service) checkTeacher(ctx context.Context, id string) error {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("teacher_id", errNotATeacher)
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() || !usr.IsActive {
		return core.NewFieldError("teacher_id", errNotATeacher)
	}
	return nil
}

func (svc *service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetClass(ctx, nc.ClassID); err != nil {
		if core.IsNotFound(err) {
			return Course{}, core.NewFieldError("class_id", err)
		}
		return Course{}, errors.Wrap(err, "finding class")
	}
	if _, err := svc.repo.GetSubject(ctx, nc.SubjectID); err != nil {
		if core.IsNotFound(err) {
			return Course{}, core.NewFieldError("subject_id", err)
		}
		return Course{}, errors.Wrap(err, "finding subject")
	}
	if err := svc.checkTeacher(ctx, nc.TeacherID); err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	crs, err := svc.repo.CreateCourse(ctx, Course{
		ClassID:   nc.ClassID,
		SubjectID: nc.SubjectID,
		TeacherID: nc.TeacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Course{}, err
	}
	// reload with the class, subject & teacher names
	return svc.repo.GetCourse(ctx, crs.ID)
}

func (svc *service) QueryCourses(ctx context.Context, filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) UpdateCourse(ctx context.Context, crs Course, uc UpdateCourse) (Course, error) {
	if err := svc.checkTeacher(ctx, uc.TeacherID); err != nil {
		return Course{}, err
	}
	crs.TeacherID = uc.TeacherID
	crs.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, err
	}
	return svc.repo.GetCourse(ctx, crs.ID)
}

func (svc *service) DeleteCourse(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Enrollments

func (svc *service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	usr, err := svc.users.GetByID(ctx, ne.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewFieldError("user_id", errNotAStudent)
		}
		return Enrollment{}, errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() || !usr.IsActive {
		return Enrollment{}, core.NewFieldError("user_id", errNotAStudent)
	}
	if _, err = svc.repo.GetClass(ctx, ne.ClassID); err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewFieldError("class_id", err)
		}
		return Enrollment{}, errors.Wrap(err, "finding class")
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:    ne.UserID,
		ClassID:   ne.ClassID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Enrollment{}, err
	}
	return svc.repo.GetEnrollment(ctx, enr.ID)
}

func (svc *service) QueryEnrollments(ctx context.Context, filter *EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *service) Unenroll(ctx context.Context, id string) error {
	return svc.repo.DeleteEnrollment(ctx, id)
}

func (svc *service) AuthorizeCourse(ctx context.Context, usr user.User, courseID string, write bool) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}

	switch {
	case usr.IsAdmin():
		return crs, nil
	case usr.IsTeacher():
		if crs.TeacherID == usr.ID {
			return crs, nil
		}
	case usr.IsStudent():
		if write {
			break
		}
		enrolled, err := svc.repo.IsEnrolled(ctx, usr.ID, crs.ClassID)
		if err != nil {
			return Course{}, errors.Wrap(err, "checking enrollment")
		}
		if enrolled {
			return crs, nil
		}
	}
	return Course{}, core.ErrPermissionDenied
}
