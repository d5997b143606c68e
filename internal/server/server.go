package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/visatk/pdf-core/internal/config"
	apperrors "github.com/visatk/pdf-core/internal/errors"
	"github.com/visatk/pdf-core/internal/session"
)

// healthChecker is a minimal interface for readiness probes against the
// backing Redis store.
type healthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	registry    *session.Registry
	healthCheck healthChecker
	clock       clockwork.Clock
	startTime   time.Time
}

func NewServer(cfg *config.Config, registry *session.Registry, healthCheck healthChecker, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	// Permissive cross-origin access: any frontend may talk to the session
	// API, and preflight requests are short-circuited here.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "Upgrade", "WebSocket"},
	}))

	srv := &Server{
		echo:        e,
		config:      cfg,
		registry:    registry,
		healthCheck: healthCheck,
		clock:       clock,
		startTime:   clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
