// Package v2 implements the JSON API of camruler under /api/v2.
package v2

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/camruler/camruler/internal/buildinfo"
	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/observability"
	"github.com/camruler/camruler/internal/overlay"
	"github.com/camruler/camruler/internal/session"
	"github.com/camruler/camruler/internal/video"
)

const (
	// Prefix is where the API is mounted.
	Prefix = "/api/v2"

	sessionKey = "camruler.session"
)

// Deps are the collaborators the controller serves requests from.
type Deps struct {
	Settings *conf.Settings
	Sessions *session.Manager
	Mailbox  *video.Mailbox
	// Push receives frames sent by browsers; nil when a camera feeds the
	// mailbox.
	Push     *video.PushSource
	Store    datastore.Store
	Renderer *overlay.Renderer
	Metrics  *observability.Metrics
	Build    *buildinfo.Context
	Logger   logger.Logger
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	settings *conf.Settings
	sessions *session.Manager
	mailbox  *video.Mailbox
	push     *video.PushSource
	store    datastore.Store
	renderer *overlay.Renderer
	metrics  *observability.Metrics
	build    *buildinfo.Context
	log      logger.Logger

	hub       *frameHub
	startTime time.Time
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, deps Deps) (*Controller, error) {
	if deps.Sessions == nil || deps.Mailbox == nil || deps.Store == nil {
		return nil, errors.Newf("api controller needs sessions, mailbox and store").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.Settings == nil {
		deps.Settings = conf.Default()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	}
	log = log.Module("api")

	c := &Controller{
		Echo:      e,
		Group:     e.Group(Prefix),
		settings:  deps.Settings,
		sessions:  deps.Sessions,
		mailbox:   deps.Mailbox,
		push:      deps.Push,
		store:     deps.Store,
		renderer:  deps.Renderer,
		metrics:   deps.Metrics,
		build:     deps.Build,
		log:       log,
		startTime: time.Now(),
	}
	c.hub = newFrameHub(c.ingestLimit(), c.videoMetrics(), log)
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/records", c.ListRecords)
	c.Group.GET("/frames/live", c.GetLiveFrame)
	c.Group.GET("/frames/ws", c.HandleFrameStream)

	s := c.Group.Group("/session", c.withSession)
	s.GET("", c.GetSession)
	s.POST("/products", c.StartNewProduct)
	s.PUT("/mode", c.SetMode)
	s.PUT("/known-length", c.SetKnownLength)
	s.POST("/capture", c.Capture)
	s.PUT("/points", c.SetPoints)
	s.POST("/calibrate", c.Calibrate)
	s.POST("/save", c.Save)
	s.GET("/frame", c.GetFrame)
}

// BroadcastFrame sends f to every websocket peer watching the live feed.
// It is meant to be registered as the mailbox put callback.
func (c *Controller) BroadcastFrame(f video.Frame) {
	c.hub.Broadcast(f)
}

// Shutdown disconnects websocket peers.
func (c *Controller) Shutdown() {
	c.hub.Close()
}

func (c *Controller) ingestLimit() float64 {
	return c.settings.WebServer.IngestRate
}

func (c *Controller) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := c.sessions.FromRequest(ctx.Response(), ctx.Request())
		if err != nil {
			return c.HandleError(ctx, err, "Failed to load session", http.StatusInternalServerError)
		}
		ctx.Set(sessionKey, s)
		return next(ctx)
	}
}

func sessionFrom(ctx echo.Context) *session.Session {
	s, _ := ctx.Get(sessionKey).(*session.Session)
	return s
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// HandleError logs err and writes an ErrorResponse. The correlation ID is the
// request ID when the request carries one.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code, ctx.Response().Header().Get(echo.HeaderXRequestID))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Warn("API error", fields...)
	}
	return ctx.JSON(code, resp)
}

// handleDomainError maps err to a status code by category.
func (c *Controller) handleDomainError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, StatusFor(err))
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, video.ErrNoFrame), errors.Is(err, session.ErrNoFrame):
		return http.StatusConflict
	case errors.Is(err, video.ErrInvalidFrame):
		return http.StatusUnprocessableEntity
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryCalibration, errors.CategoryMeasurement, errors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errors.CategoryState, errors.CategorySession, errors.CategoryVideoSource:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
