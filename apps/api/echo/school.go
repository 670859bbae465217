package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

func (s *server) registerSchoolAPI(g *echo.Group) {
	cg := g.Group("/classes", s.authed()...)
	cg.GET("", s.queryClasses)
	cg.POST("", s.createClass, adminMiddleware)
	cg.GET("/:id", s.retrieveClass)
	cg.PUT("/:id", s.updateClass, adminMiddleware)
	cg.DELETE("/:id", s.destroyClass, adminMiddleware)
	cg.GET("/:id/enrollments", s.queryClassEnrollments, roleMiddleware(user.RoleAdmin, user.RoleTeacher))

	sg := g.Group("/subjects", s.authed()...)
	sg.GET("", s.querySubjects)
	sg.POST("", s.createSubject, adminMiddleware)
	sg.GET("/:id", s.retrieveSubject)
	sg.PUT("/:id", s.updateSubject, adminMiddleware)
	sg.DELETE("/:id", s.destroySubject, adminMiddleware)

	eg := g.Group("/enrollments", s.authed()...)
	eg.GET("", s.queryEnrollments)
	eg.POST("", s.enroll, roleMiddleware(user.RoleAdmin, user.RoleStudent))
	eg.DELETE("/:id", s.unenroll, adminMiddleware)

	crg := g.Group("/courses", s.authed()...)
	crg.GET("", s.queryCourses)
	crg.POST("", s.createCourse, adminMiddleware)
	crg.GET("/:id", s.retrieveCourse)
	crg.PUT("/:id", s.updateCourse, adminMiddleware)
	crg.DELETE("/:id", s.destroyCourse, adminMiddleware)
	crg.GET("/:id/gradebook", s.retrieveGradebook, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
}

// authorizeCourse returns the course `:id` if the context user may read it (or write to it).
func (s *server) authorizeCourse(ctx echo.Context, courseID string, write bool) (school.Course, user.User, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return school.Course{}, user.User{}, err
	}
	crs, err := s.SchoolSvc.AuthorizeCourse(ctx.Request().Context(), usr, courseID, write)
	if err != nil {
		return school.Course{}, user.User{}, err
	}
	return crs, usr, nil
}

// Classes

func (s *server) queryClasses(ctx echo.Context) error {
	filter := new(school.CatalogFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Class{})
	}
	filter.Clean()

	classes, err := s.SchoolSvc.QueryClasses(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (s *server) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}
	cls, err := s.SchoolSvc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return created(ctx, "class created", cls)
}

func (s *server) retrieveClass(ctx echo.Context) error {
	cls, err := s.SchoolSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (s *server) updateClass(ctx echo.Context) error {
	cls, err := s.SchoolSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	var data school.UpdateClass
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(cls, s.Validate); err != nil {
		return err
	}
	cls, err = s.SchoolSvc.UpdateClass(ctx.Request().Context(), cls, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return success(ctx, http.StatusOK, "class updated", cls)
}

func (s *server) destroyClass(ctx echo.Context) error {
	if err := s.SchoolSvc.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return success(ctx, http.StatusOK, "class deleted")
}

func (s *server) queryClassEnrollments(ctx echo.Context) error {
	cls, err := s.SchoolSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	enrollments, err := s.SchoolSvc.QueryEnrollments(ctx.Request().Context(), &school.EnrollmentFilter{ClassID: cls.ID})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// Subjects

func (s *server) querySubjects(ctx echo.Context) error {
	filter := new(school.CatalogFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Subject{})
	}
	filter.Clean()

	subjects, err := s.SchoolSvc.QuerySubjects(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (s *server) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}
	subj, err := s.SchoolSvc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return created(ctx, "subject created", subj)
}

func (s *server) retrieveSubject(ctx echo.Context) error {
	subj, err := s.SchoolSvc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (s *server) updateSubject(ctx echo.Context) error {
	subj, err := s.SchoolSvc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	var data school.UpdateSubject
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(subj, s.Validate); err != nil {
		return err
	}
	subj, err = s.SchoolSvc.UpdateSubject(ctx.Request().Context(), subj, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return success(ctx, http.StatusOK, "subject updated", subj)
}

func (s *server) destroySubject(ctx echo.Context) error {
	if err := s.SchoolSvc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return success(ctx, http.StatusOK, "subject deleted")
}

// Enrollments

func (s *server) queryEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(school.EnrollmentFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Enrollment{})
	}
	filter.Clean()
	if usr.IsStudent() {
		filter.UserID = usr.ID
	}

	enrollments, err := s.SchoolSvc.QueryEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// enroll lets admins enroll any student; students can only enroll themselves.
func (s *server) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data school.NewEnrollment
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if usr.IsStudent() {
		data.UserID = usr.ID
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}

	enr, err := s.SchoolSvc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return created(ctx, "enrolled", enr)
}

func (s *server) unenroll(ctx echo.Context) error {
	if err := s.SchoolSvc.Unenroll(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return success(ctx, http.StatusOK, "unenrolled")
}

// Courses

// queryCourses scopes the courses by role: teachers get the ones they teach, students those of their classes.
func (s *server) queryCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(school.CourseFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Course{})
	}
	filter.Clean()
	switch {
	case usr.IsTeacher():
		filter.TeacherID = usr.ID
	case usr.IsStudent():
		filter.StudentID = usr.ID
	}

	courses, err := s.SchoolSvc.QueryCourses(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *server) createCourse(ctx echo.Context) error {
	var data school.NewCourse
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}
	crs, err := s.SchoolSvc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return created(ctx, "course created", crs)
}

func (s *server) retrieveCourse(ctx echo.Context) error {
	crs, _, err := s.authorizeCourse(ctx, ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *server) updateCourse(ctx echo.Context) error {
	crs, err := s.SchoolSvc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	var data school.UpdateCourse
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}
	crs, err = s.SchoolSvc.UpdateCourse(ctx.Request().Context(), crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return success(ctx, http.StatusOK, "course updated", crs)
}

func (s *server) destroyCourse(ctx echo.Context) error {
	if err := s.SchoolSvc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return success(ctx, http.StatusOK, "course deleted")
}

func (s *server) retrieveGradebook(ctx echo.Context) error {
	crs, _, err := s.authorizeCourse(ctx, ctx.Param("id"), true)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	gb, err := s.ReportSvc.Gradebook(ctx.Request().Context(), crs)
	if err != nil {
		return errors.Wrap(err, "loading gradebook")
	}
	return ctx.JSON(http.StatusOK, gb)
}
