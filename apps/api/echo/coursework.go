package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/user"
)

// registerCourseworkAPI adds its routes one by one: groups with middleware would shadow the `/courses/:id` routes.
func (s *server) registerCourseworkAPI(g *echo.Group) {
	authed := s.authed()
	staff := append(s.authed(), roleMiddleware(user.RoleAdmin, user.RoleTeacher))

	g.GET("/courses/:id/assignments", s.queryAssignments, authed...)
	g.POST("/courses/:id/assignments", s.createAssignment, staff...)
	g.GET("/courses/:id/materials", s.queryMaterials, authed...)
	g.POST("/courses/:id/materials", s.createMaterial, staff...)
	g.GET("/courses/:id/exams", s.queryExams, authed...)
	g.POST("/courses/:id/exams", s.createExam, staff...)

	g.GET("/assignments/:id", s.retrieveAssignment, authed...)
	g.PUT("/assignments/:id", s.updateAssignment, staff...)
	g.DELETE("/assignments/:id", s.destroyAssignment, staff...)

	g.GET("/materials/:id", s.retrieveMaterial, authed...)
	g.PUT("/materials/:id", s.updateMaterial, staff...)
	g.DELETE("/materials/:id", s.destroyMaterial, staff...)

	g.GET("/exams/:id", s.retrieveExam, authed...)
	g.PUT("/exams/:id", s.updateExam, staff...)
	g.DELETE("/exams/:id", s.destroyExam, staff...)
}

// bindCourseworkFilter reads `?from=` & `?to=` (RFC 3339) for the course `:id`.
func bindCourseworkFilter(ctx echo.Context, courseID string) (*coursework.QueryFilter, error) {
	filter := &coursework.QueryFilter{CourseIDs: []string{courseID}}
	for param, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return nil, core.NewFieldError(param, errors.New("must be an RFC 3339 date-time"))
		}
		*dst = t.UTC()
	}
	return filter, nil
}

// Assignments

func (s *server) queryAssignments(ctx echo.Context) error {
	crs, _, err := s.authorizeCourse(ctx, ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	filter, err := bindCourseworkFilter(ctx, crs.ID)
	if err != nil {
		return err
	}
	asgs, err := s.CourseworkSvc.QueryAssignments(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (s *server) createAssignment(ctx echo.Context) error {
	crs, usr, err := s.authorizeCourse(ctx, ctx.Param("id"), true)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	var data coursework.NewAssignment
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}
	asg, err := s.CourseworkSvc.CreateAssignment(ctx.Request().Context(), crs, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return created(ctx, "assignment created", asg)
}

// authorizeAssignment finds the assignment `:id` & checks the access to its course.
func (s *server) authorizeAssignment(ctx echo.Context, write bool) (coursework.Assignment, user.User, error) {
	asg, err := s.CourseworkSvc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return coursework.Assignment{}, user.User{}, errors.Wrap(err, "finding assignment")
	}
	_, usr, err := s.authorizeCourse(ctx, asg.CourseID, write)
	if err != nil {
		return coursework.Assignment{}, user.User{}, errors.Wrap(err, "authorizing course")
	}
	return asg, usr, nil
}

func (s *server) retrieveAssignment(ctx echo.Context) error {
	asg, _, err := s.authorizeAssignment(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (s *server) updateAssignment(ctx echo.Context) error {
	asg, _, err := s.authorizeAssignment(ctx, true)
	if err != nil {
		return err
	}
	var data coursework.UpdateAssignment
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(asg, s.Validate); err != nil {
		return err
	}
	asg, err = s.CourseworkSvc.UpdateAssignment(ctx.Request().Context(), asg, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return success(ctx, http.StatusOK, "assignment updated", asg)
}

func (s *server) destroyAssignment(ctx echo.Context) error {
	asg, _, err := s.authorizeAssignment(ctx, true)
	if err != nil {
		return err
	}
	if err = s.CourseworkSvc.DeleteAssignment(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return success(ctx, http.StatusOK, "assignment deleted")
}

// Materials

func (s *server) queryMaterials(ctx echo.Context) error {
	crs, _, err := s.authorizeCourse(ctx, ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	mats, err := s.CourseworkSvc.QueryMaterials(ctx.Request().Context(), &coursework.QueryFilter{CourseIDs: []string{crs.ID}}, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (s *server) createMaterial(ctx echo.Context) error {
	crs, usr, err := s.authorizeCourse(ctx, ctx.Param("id"), true)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	var data coursework.NewMaterial
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}
	mat, err := s.CourseworkSvc.CreateMaterial(ctx.Request().Context(), crs, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return created(ctx, "material created", mat)
}

func (s *server) authorizeMaterial(ctx echo.Context, write bool) (coursework.Material, error) {
	mat, err := s.CourseworkSvc.GetMaterial(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return coursework.Material{}, errors.Wrap(err, "finding material")
	}
	if _, _, err = s.authorizeCourse(ctx, mat.CourseID, write); err != nil {
		return coursework.Material{}, errors.Wrap(err, "authorizing course")
	}
	return mat, nil
}

func (s *server) retrieveMaterial(ctx echo.Context) error {
	mat, err := s.authorizeMaterial(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (s *server) updateMaterial(ctx echo.Context) error {
	mat, err := s.authorizeMaterial(ctx, true)
	if err != nil {
		return err
	}
	var data coursework.UpdateMaterial
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(mat, s.Validate); err != nil {
		return err
	}
	mat, err = s.CourseworkSvc.UpdateMaterial(ctx.Request().Context(), mat, data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return success(ctx, http.StatusOK, "material updated", mat)
}

func (s *server) destroyMaterial(ctx echo.Context) error {
	mat, err := s.authorizeMaterial(ctx, true)
	if err != nil {
		return err
	}
	if err = s.CourseworkSvc.DeleteMaterial(ctx.Request().Context(), mat.ID); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return success(ctx, http.StatusOK, "material deleted")
}

// Exams

func (s *server) queryExams(ctx echo.Context) error {
	crs, _, err := s.authorizeCourse(ctx, ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	filter, err := bindCourseworkFilter(ctx, crs.ID)
	if err != nil {
		return err
	}
	exams, err := s.CourseworkSvc.QueryExams(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (s *server) createExam(ctx echo.Context) error {
	crs, usr, err := s.authorizeCourse(ctx, ctx.Param("id"), true)
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	var data coursework.NewExam
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}
	exam, err := s.CourseworkSvc.CreateExam(ctx.Request().Context(), crs, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return created(ctx, "exam created", exam)
}

func (s *server) authorizeExam(ctx echo.Context, write bool) (coursework.Exam, error) {
	exam, err := s.CourseworkSvc.GetExam(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return coursework.Exam{}, errors.Wrap(err, "finding exam")
	}
	if _, _, err = s.authorizeCourse(ctx, exam.CourseID, write); err != nil {
		return coursework.Exam{}, errors.Wrap(err, "authorizing course")
	}
	return exam, nil
}

func (s *server) retrieveExam(ctx echo.Context) error {
	exam, err := s.authorizeExam(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exam)
}

func (s *server) updateExam(ctx echo.Context) error {
	exam, err := s.authorizeExam(ctx, true)
	if err != nil {
		return err
	}
	var data coursework.UpdateExam
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(exam, s.Validate); err != nil {
		return err
	}
	exam, err = s.CourseworkSvc.UpdateExam(ctx.Request().Context(), exam, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return success(ctx, http.StatusOK, "exam updated", exam)
}

func (s *server) destroyExam(ctx echo.Context) error {
	exam, err := s.authorizeExam(ctx, true)
	if err != nil {
		return err
	}
	if err = s.CourseworkSvc.DeleteExam(ctx.Request().Context(), exam.ID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return success(ctx, http.StatusOK, "exam deleted")
}
