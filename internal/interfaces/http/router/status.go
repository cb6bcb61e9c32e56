package router

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/contentstack/cli-sub008/internal/infrastructure/logger"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/handler"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/middleware"
)

// StatusDeps are the collaborators served by the status API. History and
// Metrics are optional.
type StatusDeps struct {
	Version  string
	Progress handler.ProgressSource
	History  handler.RunHistoryReader
	Metrics  http.Handler
	Checks   map[string]handler.Pinger
	Tracing  middleware.TracingConfig
	Logger   *zap.Logger
}

// NewStatusEngine builds the status API:
//
//	GET /healthz
//	GET /metrics
//	GET /api/v1/progress
//	GET /api/v1/progress/:module
//	GET /api/v1/runs
//	GET /api/v1/runs/:id
func NewStatusEngine(deps StatusDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(deps.Tracing)...)
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))

	system := handler.NewSystemHandler(deps.Version, deps.Checks)
	engine.GET("/healthz", system.Health)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	r := NewRouter(engine)
	progress := handler.NewProgressHandler(deps.Progress)
	r.Register(NewRouteGroup("progress", "/progress").
		GET("", progress.GetProgress).
		GET("/:module", progress.GetModuleProgress))

	if deps.History != nil {
		runs := handler.NewRunHistoryHandler(deps.History)
		r.Register(NewRouteGroup("runs", "/runs").
			GET("", runs.ListRuns).
			GET("/:id", runs.GetRun))
	}
	r.Setup()
	return engine
}

// Server runs the status API next to a migration run
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer creates a server for engine
func NewServer(cfg config.StatusConfig, engine http.Handler, log *zap.Logger) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: timeout,
		logger:          log,
	}
}

// Start listens in the background. It returns once the listener is bound so
// address errors surface to the caller.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	go func() {
		s.logger.Info("Status server starting", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server, waiting up to the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
