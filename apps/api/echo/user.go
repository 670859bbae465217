package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const contextObjKey = "object"

func (s *server) registerUserAPI(g *echo.Group) {
	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", s.login)
	ug.POST("/logout", s.logout)
	ug.POST("/password-reset", s.resetPassword)
	ug.POST("/password-reset-confirm", s.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", s.authed()...)
	ag.POST("/token-refresh", s.refreshUserToken)
	ag.GET("/me", s.retrieveMe)
	ag.POST("/register", s.createUser, adminMiddleware)
	ag.GET("", s.queryUsers, adminMiddleware)
	ag.DELETE("", s.destroyUsers, adminMiddleware)
	ag.GET("/roles", s.queryRoles, adminMiddleware)

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(s.UserSvc))
	dg.GET("", s.retrieveUser)
	dg.PUT("", s.updateUser)
	dg.DELETE("", s.destroyUser, adminMiddleware)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

// Handlers

func (s *server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Username, data.Password, s.UserSvc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := s.issueToken(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return success(ctx, http.StatusOK, "logged in", LoginResponse{Token: token, User: usr})
}

func (s *server) logout(ctx echo.Context) error {
	s.setSessionCookie(ctx, "", unixEpoch)
	return success(ctx, http.StatusOK, "logged out")
}

func (s *server) refreshUserToken(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	usr, _ := getContextUser(ctx)
	return success(ctx, http.StatusOK, "token refreshed", LoginResponse{Token: token, User: usr})
}

func (s *server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	if err := s.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		s.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return success(ctx, http.StatusOK,
		"If the email address supplied is associated with an active account on this system, "+
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	)
}

func (s *server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}
	if err := s.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return success(ctx, http.StatusOK, "Password has been reset with the new password.")
}

func (s *server) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *server) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), s.Validate, s.UserSvc); err != nil {
		return err
	}

	usr, err := s.UserSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return created(ctx, "user created", usr)
}

func (s *server) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()

	users, err := s.UserSvc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (s *server) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (s *server) retrieveUser(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving user from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *server) updateUser(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving user from context")
	}

	var data user.UpdateUser
	if err := bind(ctx, &data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive`, `Role`, `Username` & `Email` can only be changed by admins
		if data.IsActive != nil || data.Role != "" || data.Username != "" || data.Email != "" {
			return errHttpForbidden
		}
	} else if usr.ID == ctxUsr.ID && ((data.IsActive != nil && !*data.IsActive) || (data.Role != "" && data.Role != user.RoleAdmin)) {
		// admins cannot lock themselves out
		return errHttpForbidden
	}

	if err = data.Validate(ctx.Request().Context(), usr, s.Validate, s.UserSvc); err != nil {
		return err
	}
	usr, err = s.UserSvc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return success(ctx, http.StatusOK, "user updated", usr)
}

func (s *server) destroyUser(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving user from context")
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = s.UserSvc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return success(ctx, http.StatusOK, "user deleted")
}

func (s *server) destroyUsers(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := bind(ctx, &query); err != nil {
		return err
	}
	if len(query.IDs) == 0 {
		return success(ctx, http.StatusOK, "no user deleted")
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if core.ContainsString(query.IDs, ctxUsr.ID) {
		return errHttpForbidden
	}

	if err = s.UserSvc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return success(ctx, http.StatusOK, "users deleted")
}

func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return err
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(contextObjKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
