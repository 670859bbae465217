package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	errObjNotFoundInCtx = errors.New("object not found in echo.Context")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code = http.StatusInternalServerError
			resp = ErrorResponse{}
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				origErr = echo.NewHTTPError(http.StatusUnauthorized, origErr.Message)
			} else if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Error = "invalid data"
			resp.Fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Fields[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
			if len(origErr.Fields) > 0 {
				resp.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp.Error = origErr.Error()
		case *core.PermissionError:
			code = http.StatusForbidden
			resp.Error = origErr.Error()
		case *core.ConflictError:
			code = http.StatusConflict
			resp.Error = origErr.Error()
		default: // any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			resp.Error = msg
			if ctx.Echo().Debug {
				resp.Error = err.Error()
			}

			args := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Request().URL.Path,
			}}
			if usr, uErr := getContextUser(ctx); uErr == nil {
				args = append(args, usr)
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, user.User{ID: claims.Subject, Username: claims.Username, Email: claims.Email, Role: claims.Role})
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
