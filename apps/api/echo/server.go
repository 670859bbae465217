package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/upload"
	"github.com/trezcool/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		UserSvc       user.Service
		SchoolSvc     school.Service
		CourseworkSvc coursework.Service
		SubmissionSvc submission.Service
		UploadSvc     upload.Service
		ReportSvc     report.Service
		SetupSvc      setup.Service
	}

	Server interface {
		http.Handler
		Start()
		// Errors reports the errors that stopped the server.
		Errors() <-chan error
		// ShutdownSignal reports the OS signals & internal errors requesting a graceful shutdown.
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		jwt      echo.MiddlewareFunc
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.SchoolSvc, "SchoolSvc"),
		vala.IsNotNil(deps.CourseworkSvc, "CourseworkSvc"),
		vala.IsNotNil(deps.SubmissionSvc, "SubmissionSvc"),
		vala.IsNotNil(deps.UploadSvc, "UploadSvc"),
		vala.IsNotNil(deps.ReportSvc, "ReportSvc"),
		vala.IsNotNil(deps.SetupSvc, "SetupSvc"),
	).CheckAndPanic()

	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(sessionCookieMiddleware(conf.Server.SessionCookieName))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware)

	s.jwt = middleware.JWTWithConfig(jwtConfig(conf))

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	s.registerUserAPI(v1)
	s.registerSchoolAPI(v1)
	s.registerCourseworkAPI(v1)
	s.registerSubmissionAPI(v1)
	s.registerUploadAPI(v1)
	s.registerReportAPI(v1)
	s.registerSystemAPI(v1)
}

// authed returns the middlewares authenticating a request and loading its user.
func (s *server) authed() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{s.jwt, contextUserMiddleware(s.UserSvc)}
}

func (s *server) Start() {
	if err := s.app.Start(s.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
