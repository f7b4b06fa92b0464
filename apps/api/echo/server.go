package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
)

// ServerDeps holds everything the API needs.
type ServerDeps struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Registry   prometheus.Registerer
	Services   *shared.Services
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Services.User),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(newHTTPMetrics(s.deps.Registry).middleware())
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.auth.config)
	authz := &authorizer{users: s.deps.Services.User, perms: s.deps.Services.Permission}
	limiter := newIPRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst)
	svcs := s.deps.Services
	validate := s.deps.Validate

	registerUserAPI(api, jwt, limiter.middleware(), userApi{
		svc:      svcs.User,
		perms:    svcs.Permission,
		auth:     s.auth,
		validate: validate,
		logger:   s.deps.Logger,
	})
	registerPermissionAPI(api, jwt, authz, permissionApi{svc: svcs.Permission, validate: validate})
	registerCampusAPI(api, jwt, authz, campusApi{svc: svcs.Campus, calendar: svcs.Calendar, validate: validate})
	registerProgramAPI(api, jwt, authz, programApi{svc: svcs.Program, classes: svcs.Class, validate: validate})
	registerClassAPI(api, jwt, authz, classApi{
		svc:         svcs.Class,
		assessments: svcs.Assessment,
		validate:    validate,
	})
	registerPeopleAPI(api, jwt, authz, peopleApi{
		teachers: svcs.Teacher,
		students: svcs.Student,
		validate: validate,
	})
	registerTimetableAPI(api, jwt, authz, timetableApi{
		svc:      svcs.Timetable,
		classes:  svcs.Class,
		teachers: svcs.Teacher,
		validate: validate,
	})
	registerAssessmentAPI(api, jwt, authz, assessmentApi{svc: svcs.Assessment, validate: validate})
	registerGradeAPI(api, jwt, authz, gradeApi{
		svc:      svcs.Grade,
		classes:  svcs.Class,
		teachers: svcs.Teacher,
		students: svcs.Student,
		users:    svcs.User,
		validate: validate,
	})
	registerCalendarAPI(api, jwt, authz, calendarApi{svc: svcs.Calendar, validate: validate})
	registerKnowledgeAPI(api, jwt, authz, knowledgeApi{
		svc:           svcs.Knowledge,
		users:         svcs.User,
		validate:      validate,
		maxUploadSize: conf.Knowledge.MaxUploadSize,
	})
}

// Start runs the server in the background; listen errors are sent on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		s.deps.Logger.Info("API listening", map[string]interface{}{"host": s.deps.Conf.Server.Host})
		if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
			s.errors <- err
		}
	}()
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Academia API!")
}
