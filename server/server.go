// Package server exposes the gateway's narrow HTTP surface: submit a
// completion request, poll a task, inspect the provider queues.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/famulus/ai/dispatch"
	"github.com/hrygo/famulus/ai/modes"
	"github.com/hrygo/famulus/ai/prompt"
	"github.com/hrygo/famulus/internal/profile"
)

// Server is the HTTP front of the dispatcher.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	modesCfg   *modes.Config
	resolver   *modes.Resolver
	builder    *prompt.Builder
	dispatcher *dispatch.Dispatcher
}

// NewServer wires the resolver, prompt builder, and dispatcher behind the
// HTTP routes.
func NewServer(
	p *profile.Profile,
	modesCfg *modes.Config,
	resolver *modes.Resolver,
	builder *prompt.Builder,
	dispatcher *dispatch.Dispatcher,
	metrics *dispatch.Metrics,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{
		Profile:    p,
		echoServer: e,
		modesCfg:   modesCfg,
		resolver:   resolver,
		builder:    builder,
		dispatcher: dispatcher,
	}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.POST("/completions", s.handleSubmit)
	apiV1.GET("/tasks/:id", s.handleTaskStatus)
	apiV1.DELETE("/tasks/:id", s.handleTaskCancel)
	apiV1.GET("/queues", s.handleQueues)

	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server listening", "addr", addr, "version", s.Profile.Version)
	return s.echoServer.Start(addr)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echoServer.ServeHTTP(w, r)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// requestLogger assigns a request id and logs each request with latency.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			slog.Debug("http request",
				"request_id", requestID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}
