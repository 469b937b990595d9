// Package server exposes the calendar operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
	"timesherpa/internal/trends"
)

const (
	tokenKey     = "accessToken"
	userIDHeader = "X-User-ID"
)

// Service is what the routes need from the service layer.
type Service interface {
	Analysis(ctx context.Context, token, userID string) (models.CalendarAnalysis, error)
	Upcoming(ctx context.Context, token, userID string) (models.ScheduleSuggestions, error)
	WeekOverWeek(ctx context.Context, token, userID string) (*trends.Report, error)
	ScheduleSuggestion(ctx context.Context, token string, req scheduling.Request) scheduling.Result
}

// Server serves the calendar API, metrics and a health check.
type Server struct {
	svc    Service
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the router. gatherer backs /metrics; nil uses the default registry.
func New(logger *slog.Logger, svc Service, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{svc: svc, logger: logger, engine: engine}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api/calendar", requireToken)
	api.GET("/analysis", s.analysis)
	api.GET("/upcoming", s.upcoming)
	api.GET("/week-over-week", s.weekOverWeek)
	api.POST("/schedule-suggestion", s.scheduleSuggestion)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func requireToken(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.Set(tokenKey, strings.TrimSpace(token))
	c.Next()
}

func failure(c *gin.Context, message string, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
}

func (s *Server) analysis(c *gin.Context) {
	result, err := s.svc.Analysis(c.Request.Context(), c.GetString(tokenKey), c.GetHeader(userIDHeader))
	if err != nil {
		s.logger.Error("Calendar analysis failed", "error", err)
		failure(c, "Failed to analyze calendar data", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) upcoming(c *gin.Context) {
	result, err := s.svc.Upcoming(c.Request.Context(), c.GetString(tokenKey), c.GetHeader(userIDHeader))
	if err != nil {
		s.logger.Error("Upcoming events analysis failed", "error", err)
		failure(c, "Failed to analyze upcoming events", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) weekOverWeek(c *gin.Context) {
	report, err := s.svc.WeekOverWeek(c.Request.Context(), c.GetString(tokenKey), c.GetHeader(userIDHeader))
	if err != nil {
		s.logger.Error("Week-over-week analysis failed", "error", err)
		failure(c, "Failed to analyze week-over-week data", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) scheduleSuggestion(c *gin.Context) {
	var req scheduling.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, scheduling.Result{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	result := s.svc.ScheduleSuggestion(c.Request.Context(), c.GetString(tokenKey), req)
	switch {
	case result.Success:
		c.JSON(http.StatusOK, result)
	case result.Invalid:
		c.JSON(http.StatusBadRequest, result)
	default:
		c.JSON(http.StatusInternalServerError, result)
	}
}
