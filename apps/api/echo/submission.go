package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

func (s *server) registerSubmissionAPI(g *echo.Group) {
	authed := s.authed()

	g.PUT("/assignments/:id/submission", s.saveSubmission, append(s.authed(), roleMiddleware(user.RoleStudent))...)
	g.GET("/assignments/:id/submissions", s.queryAssignmentSubmissions, authed...)

	g.GET("/submissions", s.querySubmissions, authed...)
	g.GET("/submissions/:id", s.retrieveSubmission, authed...)
	g.POST("/submissions/:id/grade", s.gradeSubmission, append(s.authed(), roleMiddleware(user.RoleAdmin, user.RoleTeacher))...)
	g.GET("/submissions/:id/backup", s.downloadSubmissionBackup, authed...)
}

// authorizeSubmission finds the submission `:id`.
// Students may only read their own; the others need access to the course of the assignment.
func (s *server) authorizeSubmission(ctx echo.Context, write bool) (submission.Submission, coursework.Assignment, user.User, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return submission.Submission{}, coursework.Assignment{}, user.User{}, err
	}
	sub, err := s.SubmissionSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return submission.Submission{}, coursework.Assignment{}, user.User{}, errors.Wrap(err, "finding submission")
	}
	if usr.IsStudent() && (write || sub.StudentID != usr.ID) {
		return submission.Submission{}, coursework.Assignment{}, user.User{}, core.ErrPermissionDenied
	}
	asg, err := s.CourseworkSvc.GetAssignment(ctx.Request().Context(), sub.AssignmentID)
	if err != nil {
		return submission.Submission{}, coursework.Assignment{}, user.User{}, errors.Wrap(err, "finding assignment")
	}
	if !usr.IsStudent() {
		if _, err = s.SchoolSvc.AuthorizeCourse(ctx.Request().Context(), usr, asg.CourseID, true); err != nil {
			return submission.Submission{}, coursework.Assignment{}, user.User{}, errors.Wrap(err, "authorizing course")
		}
	}
	return sub, asg, usr, nil
}

// saveSubmission saves the draft of the student, or hands it in.
func (s *server) saveSubmission(ctx echo.Context) error {
	asg, usr, err := s.authorizeAssignment(ctx, false)
	if err != nil {
		return err
	}
	var data submission.SaveSubmission
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}

	sub, err := s.SubmissionSvc.Save(ctx.Request().Context(), usr, asg, data)
	if err != nil {
		return errors.Wrap(err, "saving submission")
	}
	msg := "draft saved"
	if data.Submit {
		msg = "submitted"
	}
	return success(ctx, http.StatusOK, msg, sub)
}

func (s *server) queryAssignmentSubmissions(ctx echo.Context) error {
	asg, usr, err := s.authorizeAssignment(ctx, false)
	if err != nil {
		return err
	}
	filter := &submission.QueryFilter{AssignmentID: asg.ID}
	if usr.IsStudent() {
		filter.StudentID = usr.ID
	} else if _, err = s.SchoolSvc.AuthorizeCourse(ctx.Request().Context(), usr, asg.CourseID, true); err != nil {
		return errors.Wrap(err, "authorizing course")
	}

	subs, err := s.SubmissionSvc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

// querySubmissions scopes the submissions by role: students get theirs, teachers those of their courses.
func (s *server) querySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(submission.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}
	filter.Clean()
	switch {
	case usr.IsStudent():
		filter.StudentID = usr.ID
	case usr.IsTeacher():
		filter.TeacherID = usr.ID
	}

	subs, err := s.SubmissionSvc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (s *server) retrieveSubmission(ctx echo.Context) error {
	sub, _, _, err := s.authorizeSubmission(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (s *server) gradeSubmission(ctx echo.Context) error {
	sub, asg, usr, err := s.authorizeSubmission(ctx, true)
	if err != nil {
		return err
	}
	var data submission.GradeSubmission
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.Validate); err != nil {
		return err
	}

	sub, err = s.SubmissionSvc.Grade(ctx.Request().Context(), usr, sub, asg, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return success(ctx, http.StatusOK, "submission graded", sub)
}

func (s *server) downloadSubmissionBackup(ctx echo.Context) error {
	sub, _, _, err := s.authorizeSubmission(ctx, false)
	if err != nil {
		return err
	}
	backup, err := s.SubmissionSvc.GetBackup(ctx.Request().Context(), sub.ID)
	if err != nil {
		return errors.Wrap(err, "loading backup")
	}
	contentType := backup.Type
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", backup.Name))
	return ctx.Blob(http.StatusOK, contentType, backup.Data)
}
