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
	"go.uber.org/dig"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/upload"
	"github.com/trezcool/jifunze/core/user"
	"github.com/trezcool/jifunze/services/metrics"
	"github.com/trezcool/jifunze/services/ratelimit"
)

type (
	ServerDeps struct {
		dig.In

		Conf          *core.Config
		Logger        core.Logger
		UserSvc       user.ServiceInterface
		AssignmentSvc assignment.ServiceInterface
		UploadSvc     upload.ServiceInterface
		Validate      *validator.Validate
		Translator    ut.Translator

		Limiter *ratelimit.Limiter `optional:"true"` // nil: no rate limiting
		Metrics *metrics.Metrics   `optional:"true"` // nil: no /metrics
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		shutdown:   make(chan os.Signal, 1),
		errors:     make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.Conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	if s.Metrics != nil {
		s.app.Use(s.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	s.app.GET("/", home)
	s.app.GET("/health", health)

	auth := newAuth(s.Conf, s.UserSvc)
	registerAuthAPI(s.app, auth, s.ServerDeps)
	registerUserAPI(s.app, auth, s.UserSvc)
	registerAssignmentAPI(s.app, auth, s.AssignmentSvc)
	registerUploadAPI(s.app, auth, s.UploadSvc, s.Metrics)
}

// Start listens until the server is shut down. Failures are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
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
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Welcome to Jifunze API!"})
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
