// Package api implements the v2 HTTP API of the engine.
package api

import (
	"crypto/rand"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/switchbacklabs/towers-tt/internal/attempt"
	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/history"
	"github.com/switchbacklabs/towers-tt/internal/leaderboard"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/observability"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Selector *attempt.Selector
	Importer *history.Importer
	Boards   *leaderboard.Aggregator

	metrics        *observability.Metrics
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	startTime      time.Time
}

// New creates a new API controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	selector *attempt.Selector, importer *history.Importer,
	boards *leaderboard.Aggregator, metrics *observability.Metrics) *Controller {

	c := &Controller{
		Echo:        e,
		DS:          ds,
		Settings:    settings,
		Selector:    selector,
		Importer:    importer,
		Boards:      boards,
		metrics:     metrics,
		apiLevelVar: new(slog.LevelVar),
		startTime:   time.Now(),
	}

	var err error
	c.apiLogger, c.apiLoggerClose, err = logging.NewFileLogger("logs/api.log", "api", c.apiLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)

	c.Group.GET("/leaderboard/overall", c.GetOverallBoard)
	c.Group.GET("/leaderboard/climbing", c.GetClimbingBoard)
	c.Group.GET("/leaderboard/descending", c.GetDescendingBoard)
	c.Group.GET("/leaderboard/legacy", c.GetLegacyBoard)

	c.Group.POST("/riders/:id/resolve", c.ResolveRider)
	c.Group.POST("/riders/:id/import", c.ImportRider)
	c.Group.GET("/riders/:id/history", c.GetRiderHistory)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Health reports liveness and uptime.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"name":           c.Settings.Main.Name,
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
	})
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		_ = c.apiLoggerClose()
	}
}

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}
	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, errorResp)
}

// generateCorrelationID creates a unique identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
