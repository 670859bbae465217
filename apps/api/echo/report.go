package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (s *server) registerReportAPI(g *echo.Group) {
	g.GET("/dashboard", s.retrieveDashboard, s.authed()...)
}

// retrieveDashboard returns the counters of the context user; the gradebook lives with the courses.
func (s *server) retrieveDashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	dash, err := s.ReportSvc.Dashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "loading dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
