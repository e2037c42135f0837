package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Engine is the application surface served over HTTP.
type Engine interface {
	RecordDeposit(ctx context.Context, userID string, amount decimal.Decimal) (*app.PlanSnapshot, error)
	PlanState(ctx context.Context, userID string) (*app.PlanSnapshot, error)
	ResetAccount(ctx context.Context, userID string) error
	DailyTrades(ctx context.Context, userID string, day time.Time) ([]*domain.TradeEvent, error)
	StartSession(ctx context.Context, req app.SessionRequest) (*app.SessionSnapshot, error)
	SessionState(ctx context.Context, id string) (*app.SessionSnapshot, error)
	RestartSession(ctx context.Context, id string) (*app.SessionSnapshot, error)
	ResetSession(ctx context.Context, id string) error
}

// TierResolver looks up activity tiers by account size.
type TierResolver interface {
	Resolve(accountSize decimal.Decimal) (domain.ActivityTier, error)
	Version() string
}

// Config holds the handler dependencies.
type Config struct {
	Engine         Engine
	Tiers          TierResolver
	Clock          ports.TimeSource
	Logger         ports.Logger
	StreamInterval time.Duration // Push interval of the session feed, default 1s
}

// Handler serves the JSON views and the live session feed.
type Handler struct {
	engine   Engine
	tiers    TierResolver
	clock    ports.TimeSource
	logger   ports.Logger
	interval time.Duration
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Engine == nil || cfg.Tiers == nil || cfg.Clock == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("engine, tiers, clock and logger are required for http handler")
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = time.Second
	}
	return &Handler{
		engine:   cfg.Engine,
		tiers:    cfg.Tiers,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: cfg.StreamInterval,
	}, nil
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	api := router.Group("/api")
	{
		api.POST("/deposits", h.createDeposit)
		api.GET("/users/:user_id/plan", h.getPlan)
		api.GET("/users/:user_id/trades", h.getDailyTrades)
		api.DELETE("/users/:user_id", h.resetAccount)

		api.POST("/sessions", h.startSession)
		api.GET("/sessions/:id", h.getSession)
		api.POST("/sessions/:id/restart", h.restartSession)
		api.DELETE("/sessions/:id", h.resetSession)

		api.GET("/tiers", h.getTier)
	}

	router.GET("/ws/sessions/:id", h.streamSession)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return router
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug(c.Request.Context(), "HTTP request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// fail writes the error response matching err.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), err, op+": Request failed", map[string]interface{}{"path": c.Request.URL.Path})
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrConflict), errors.Is(err, ports.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, ports.ErrInvalidInput),
		errors.Is(err, ports.ErrInvalidRequest),
		errors.Is(err, ports.ErrInvalidSession),
		errors.Is(err, ports.ErrInvalidSchedule),
		errors.Is(err, ports.ErrInvalidRecalculation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// createDeposit handles POST /api/deposits
func (h *Handler) createDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.engine.RecordDeposit(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		h.fail(c, "createDeposit", err)
		return
	}
	c.JSON(http.StatusCreated, toPlan(snap))
}

// getPlan handles GET /api/users/:user_id/plan
func (h *Handler) getPlan(c *gin.Context) {
	snap, err := h.engine.PlanState(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.fail(c, "getPlan", err)
		return
	}
	c.JSON(http.StatusOK, toPlan(snap))
}

// getDailyTrades handles GET /api/users/:user_id/trades?day=YYYY-MM-DD
func (h *Handler) getDailyTrades(c *gin.Context) {
	day := h.clock.Now().UTC()
	if raw := c.Query("day"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be formatted as YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	trades, err := h.engine.DailyTrades(c.Request.Context(), c.Param("user_id"), day)
	if err != nil {
		h.fail(c, "getDailyTrades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":    day.Format(time.DateOnly),
		"trades": toTrades(trades),
		"profit": domain.SumProfits(trades),
	})
}

// resetAccount handles DELETE /api/users/:user_id
func (h *Handler) resetAccount(c *gin.Context) {
	if err := h.engine.ResetAccount(c.Request.Context(), c.Param("user_id")); err != nil {
		h.fail(c, "resetAccount", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// startSession handles POST /api/sessions
func (h *Handler) startSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DurationSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds cannot be negative"})
		return
	}
	snap, err := h.engine.StartSession(c.Request.Context(), app.SessionRequest{
		UserID:       req.UserID,
		StartAmount:  req.StartAmount,
		TargetAmount: req.TargetAmount,
		Duration:     time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		h.fail(c, "startSession", err)
		return
	}
	c.JSON(http.StatusCreated, toSession(snap))
}

// getSession handles GET /api/sessions/:id
func (h *Handler) getSession(c *gin.Context) {
	snap, err := h.engine.SessionState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "getSession", err)
		return
	}
	c.JSON(http.StatusOK, toSession(snap))
}

// restartSession handles POST /api/sessions/:id/restart
func (h *Handler) restartSession(c *gin.Context) {
	snap, err := h.engine.RestartSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "restartSession", err)
		return
	}
	c.JSON(http.StatusOK, toSession(snap))
}

// resetSession handles DELETE /api/sessions/:id
func (h *Handler) resetSession(c *gin.Context) {
	if err := h.engine.ResetSession(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "resetSession", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getTier handles GET /api/tiers?account_size=
func (h *Handler) getTier(c *gin.Context) {
	size, err := decimal.NewFromString(c.Query("account_size"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_size must be a decimal number"})
		return
	}
	tier, err := h.tiers.Resolve(size)
	if err != nil {
		h.fail(c, "getTier", err)
		return
	}
	c.JSON(http.StatusOK, toTier(tier, h.tiers.Version()))
}
