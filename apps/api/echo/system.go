package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/user"
)

func (s *server) registerSystemAPI(g *echo.Group) {
	g.POST("/system/migrate", s.migrate, s.setupKeyOrAdminMiddleware)
	g.POST("/system/setup", s.setupApp, s.bootstrapMiddleware)
}

func (s *server) migrate(ctx echo.Context) error {
	var data setup.MigrateRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	res, err := s.SetupSvc.Migrate(ctx.Request().Context(), data.Command)
	if err != nil {
		return errors.Wrap(err, "migrating")
	}
	return success(ctx, http.StatusOK, "migrations applied", res)
}

// setupApp creates the first admin; it fails once there is one.
func (s *server) setupApp(ctx echo.Context) error {
	var data setup.SetupRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	data.Admin.Role = user.RoleAdmin
	if err := data.Admin.Validate(ctx.Request().Context(), s.Validate, s.UserSvc); err != nil {
		return err
	}

	res, err := s.SetupSvc.Seed(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting up")
	}
	return created(ctx, "setup complete", res)
}
