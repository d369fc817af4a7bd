// Package server exposes the browse and pipeline-control HTTP API.
package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"BioMedNews/internal/ports"
	"BioMedNews/internal/usecase"
)

// Pipeline is the slice of the pipeline the HTTP surface needs.
type Pipeline interface {
	Run(ctx context.Context) (usecase.Summary, error)
	Status() usecase.RunStatus
}

// Server serves the JSON API over echo.
type Server struct {
	echo     *echo.Echo
	store    ports.PaperStore
	pipeline Pipeline
	logger   *slog.Logger
	addr     string
}

// New assembles the echo instance with its middleware and routes.
func New(addr string, store ports.PaperStore, pipeline Pipeline, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		addr:     addr,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				s.debug("request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				s.warn("request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error)
			}
			return nil
		},
	}))

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.GET("/papers", s.listPapers)
	api.GET("/papers/:id", s.getPaper)
	api.GET("/papers/:id/similar", s.similarPapers)
	api.GET("/tags", s.listTags)
	api.POST("/pipeline/run", s.runPipeline)
	api.GET("/pipeline/status", s.pipelineStatus)

	s.echo = e
	return s
}

// Start blocks serving the API until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Server) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
