package echoapi

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
)

const setupKeyHeader = "X-Setup-Key"

// roleMiddleware lets through the users having any of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var adminMiddleware = roleMiddleware(user.RoleAdmin)

// setupKeyOrAdminMiddleware lets through the requests carrying the setup key (when one is configured)
// or an admin token.
func (s *server) setupKeyOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	asAdmin := next
	for _, m := range []echo.MiddlewareFunc{adminMiddleware, contextUserMiddleware(s.UserSvc), s.jwt} {
		asAdmin = m(asAdmin)
	}

	return func(ctx echo.Context) error {
		key := ctx.Request().Header.Get(setupKeyHeader)
		if key != "" && s.Conf.SetupKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.Conf.SetupKey)) == 1 {
				return next(ctx)
			}
			return errHttpForbidden
		}
		return asAdmin(ctx)
	}
}

// bootstrapMiddleware lets anyone through while no setup key is configured and there is no admin yet.
// Otherwise it falls back to setupKeyOrAdminMiddleware.
func (s *server) bootstrapMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	guarded := s.setupKeyOrAdminMiddleware(next)

	return func(ctx echo.Context) error {
		if s.Conf.SetupKey == "" {
			hasAdmin, err := s.UserSvc.HasAdmin(ctx.Request().Context())
			if err != nil {
				return errors.Wrap(err, "checking admin")
			}
			if !hasAdmin {
				return next(ctx)
			}
		}
		return guarded(ctx)
	}
}
