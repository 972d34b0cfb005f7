package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/analytics"
	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
	"github.com/luanmachadops/smartclass-telemetry/internal/dto"
)

// Pipeline is the collector surface the handler exposes over HTTP
type Pipeline interface {
	TrackEvent(name string, category domain.EventCategory, properties map[string]interface{}, opts *analytics.TrackOptions)
	TrackPageView(page domain.PageContext, title string)
	TrackError(err error, context map[string]interface{})
	TrackConversion(name string, value float64, currency string, properties map[string]interface{})
	Identify(ctx context.Context, userID string, traits map[string]interface{})
	SetSchool(ctx context.Context, schoolID string, properties map[string]interface{})
	GetConfig() analytics.Config
	UpdateConfig(update analytics.ConfigUpdate)
	ForceFlush(ctx context.Context) error
}

// StatusSource exposes the last known backing-store health snapshot
type StatusSource interface {
	Status() domain.HealthStatus
}

// SessionSource exposes the active session for introspection
type SessionSource interface {
	Current() *domain.UserSession
}

type Handler struct {
	pipeline Pipeline
	health   StatusSource
	session  SessionSource
	router   *gin.Engine
	log      *zap.Logger
}

func NewHandler(pipeline Pipeline, health StatusSource, session SessionSource, log *zap.Logger) *Handler {
	h := &Handler{
		pipeline: pipeline,
		health:   health,
		session:  session,
		router:   gin.Default(),
		log:      log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	v1 := h.router.Group("/v1")
	v1.POST("/events", h.trackEvent)
	v1.POST("/pageviews", h.trackPageView)
	v1.POST("/errors", h.trackError)
	v1.POST("/conversions", h.trackConversion)
	v1.POST("/identify", h.identify)
	v1.POST("/school", h.setSchool)
	v1.GET("/session", h.getSession)
	v1.GET("/config", h.getConfig)
	v1.PATCH("/config", h.updateConfig)
	v1.POST("/flush", h.forceFlush)
}

// healthCheck reports the last known backing-store snapshot
func (h *Handler) healthCheck(c *gin.Context) {
	status := h.health.Status()

	code := http.StatusOK
	if status.Status == domain.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}

// trackEvent handles POST /v1/events
func (h *Handler) trackEvent(c *gin.Context) {
	var req dto.TrackEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid track request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	category := domain.EventCategory(req.Category)
	if !domain.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "unknown category: " + req.Category,
		})
		return
	}

	opts := &analytics.TrackOptions{
		Label:    req.Label,
		Value:    req.Value,
		UserID:   req.UserID,
		SchoolID: req.SchoolID,
	}
	if req.Page != nil {
		opts.Page = &domain.PageContext{
			URL:       req.Page.URL,
			Path:      req.Page.Path,
			Referrer:  req.Page.Referrer,
			UserAgent: req.Page.UserAgent,
		}
	}

	h.pipeline.TrackEvent(req.Name, category, req.Properties, opts)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// trackPageView handles POST /v1/pageviews
func (h *Handler) trackPageView(c *gin.Context) {
	var req dto.TrackPageViewRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}

	h.pipeline.TrackPageView(domain.PageContext{
		URL:       req.URL,
		Path:      req.Path,
		Referrer:  req.Referrer,
		UserAgent: userAgent,
	}, req.Title)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// trackError handles POST /v1/errors
func (h *Handler) trackError(c *gin.Context) {
	var req dto.TrackErrorRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	h.pipeline.TrackError(errors.New(req.Message), req.Context)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// trackConversion handles POST /v1/conversions
func (h *Handler) trackConversion(c *gin.Context) {
	var req dto.TrackConversionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	h.pipeline.TrackConversion(req.Name, req.Value, req.Currency, req.Properties)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// identify handles POST /v1/identify
func (h *Handler) identify(c *gin.Context) {
	var req dto.IdentifyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	h.pipeline.Identify(c.Request.Context(), req.UserID, req.Traits)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// setSchool handles POST /v1/school
func (h *Handler) setSchool(c *gin.Context) {
	var req dto.SetSchoolRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	h.pipeline.SetSchool(c.Request.Context(), req.SchoolID, req.Properties)

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// getSession handles GET /v1/session
func (h *Handler) getSession(c *gin.Context) {
	session := h.session.Current()
	if session == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "no_active_session",
			Message: "no session is currently active",
		})
		return
	}

	c.JSON(http.StatusOK, session)
}

// getConfig handles GET /v1/config
func (h *Handler) getConfig(c *gin.Context) {
	cfg := h.pipeline.GetConfig()

	c.JSON(http.StatusOK, dto.ConfigResponse{
		Enabled:          cfg.Enabled,
		SampleRate:       cfg.SampleRate,
		BatchSize:        cfg.BatchSize,
		FlushIntervalSec: int(cfg.FlushInterval / time.Second),
		RealtimeMode:     cfg.RealtimeMode,
		DefaultCurrency:  cfg.DefaultCurrency,
	})
}

// updateConfig handles PATCH /v1/config
func (h *Handler) updateConfig(c *gin.Context) {
	var req dto.UpdateConfigRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	update := analytics.ConfigUpdate{
		Enabled:      req.Enabled,
		BatchSize:    req.BatchSize,
		RealtimeMode: req.RealtimeMode,
	}
	if req.FlushIntervalSec != nil {
		interval := time.Duration(*req.FlushIntervalSec) * time.Second
		update.FlushInterval = &interval
	}

	h.pipeline.UpdateConfig(update)

	h.log.Info("Pipeline config updated")

	c.JSON(http.StatusOK, dto.AcceptedResponse{Status: "updated"})
}

// forceFlush handles POST /v1/flush
func (h *Handler) forceFlush(c *gin.Context) {
	if err := h.pipeline.ForceFlush(c.Request.Context()); err != nil {
		h.log.Error("Forced flush failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "flush_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.FlushResponse{Status: "flushed"})
}
