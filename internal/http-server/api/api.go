package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"giftbot/internal/config"
	errs "giftbot/internal/http-server/handlers/errors"
	"giftbot/internal/http-server/handlers/codes"
	"giftbot/internal/http-server/handlers/health"
	"giftbot/internal/http-server/middleware/authenticate"
	"giftbot/internal/http-server/middleware/timeout"
	"giftbot/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	codes.Core
	health.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      Router(log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// Router builds the ops API: health probes and metrics are open, /v1 needs an operator token.
func Router(log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(30 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(errs.NotFound(log))
	router.MethodNotAllowed(errs.NotAllowed(log))

	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", health.Health(log))
		r.Get("/health/listeners", health.Listeners(log, handler))
	})

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(render.SetContentType(render.ContentTypeJSON))
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/codes", func(c chi.Router) {
			c.Get("/", codes.List(log, handler))
			c.Post("/", codes.Create(log, handler))
			c.Post("/reload", codes.Reload(log, handler))
			c.Post("/purge", codes.Purge(log, handler))
			c.Delete("/{key}", codes.Remove(log, handler))
			c.Post("/{key}/audit", codes.Audit(log, handler))
		})
	})

	return router
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIp, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
