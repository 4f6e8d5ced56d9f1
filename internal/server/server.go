// Package server exposes derived progress views and stage completion over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/internal/remote"
	"github.com/eduxora/stageflow/pkg/api"
)

// Service is the part of *lifecycle.Lifecycle the HTTP surface uses.
type Service interface {
	Load(ctx context.Context, requestID string) (*lifecycle.RequestView, error)
	Submit(ctx context.Context, comp api.Completion) error
	RequestRefresh(ctx context.Context, requestID string) error
	Events(ctx context.Context, requestID string) ([]api.RequestEvent, error)
}

var _ Service = (*lifecycle.Lifecycle)(nil)

// Options configures New.
type Options struct {
	Logger *slog.Logger

	// ServiceName is reported by the tracing middleware. Tracing is off when
	// it is empty.
	ServiceName string
}

// Server holds the echo instance and its dependencies.
type Server struct {
	svc    Service
	logger *slog.Logger
	echo   *echo.Echo
}

// New builds the router with its middleware stack.
func New(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{svc: svc, logger: opts.Logger, echo: e}

	e.Use(middleware.Recover())
	if opts.ServiceName != "" {
		e.Use(otelecho.Middleware(opts.ServiceName))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				s.logger.WarnContext(c.Request().Context(), "request failed", attrs...)
				return nil
			}
			s.logger.DebugContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", s.health)

	g := e.Group("/api/v1")
	g.GET("/requests/:id/progress", s.getProgress)
	g.POST("/requests/:id/stages/:stageId/complete", s.completeStage)
	g.POST("/requests/:id/refresh", s.refresh)
	g.GET("/requests/:id/events", s.listEvents)

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HTTPServer wraps the router in an *http.Server with the given timeouts.
func (s *Server) HTTPServer(addr string, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getProgress returns the derived view of a request
// (GET /api/v1/requests/:id/progress)
func (s *Server) getProgress(c echo.Context) error {
	rv, err := s.svc.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return loadError(err)
	}
	return c.JSON(http.StatusOK, rv)
}

type completeBody struct {
	Action         api.Action      `json:"action"`
	Comment        string          `json:"comment"`
	FieldResponses json.RawMessage `json:"fieldResponses"`
}

// completeStage submits a stage decision
// (POST /api/v1/requests/:id/stages/:stageId/complete)
func (s *Server) completeStage(c echo.Context) error {
	var body completeBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	err := s.svc.Submit(c.Request().Context(), api.Completion{
		RequestID:      c.Param("id"),
		StageID:        c.Param("stageId"),
		Action:         body.Action,
		Comment:        body.Comment,
		FieldResponses: body.FieldResponses,
	})
	if err != nil {
		return submitError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// refresh schedules a refetch of a request
// (POST /api/v1/requests/:id/refresh)
func (s *Server) refresh(c echo.Context) error {
	if err := s.svc.RequestRefresh(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// listEvents returns the lifecycle events of a request
// (GET /api/v1/requests/:id/events)
func (s *Server) listEvents(c echo.Context) error {
	events, err := s.svc.Events(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []api.RequestEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

func loadError(err error) error {
	switch {
	case errors.Is(err, remote.ErrRequestNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

func submitError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrSubmissionInFlight):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, api.ErrInvalidAction), errors.Is(err, lifecycle.ErrRejectNotAllowed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
