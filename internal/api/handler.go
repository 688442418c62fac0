package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"securemarket/internal/service"
	"securemarket/internal/state"
	"securemarket/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// IdempotencyStore deduplicates intent submissions
type IdempotencyStore interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CommandPublisher enqueues intents for asynchronous dispatch
type CommandPublisher interface {
	PublishIntentCommand(ctx context.Context, intent []byte) (string, error)
}

// Handler contains HTTP handlers
type Handler struct {
	store          *service.ApplicationStore
	idempotency    IdempotencyStore
	commands       CommandPublisher
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// Option configures optional Handler dependencies
type Option func(*Handler)

// WithIdempotency deduplicates requests carrying an Idempotency-Key header
func WithIdempotency(store IdempotencyStore, ttl time.Duration) Option {
	return func(h *Handler) {
		h.idempotency = store
		h.idempotencyTTL = ttl
	}
}

// WithCommandPublisher enables asynchronous intent submission
func WithCommandPublisher(p CommandPublisher) Option {
	return func(h *Handler) {
		h.commands = p
	}
}

// NewHandler creates a new HTTP handler
func NewHandler(store *service.ApplicationStore, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		logger: util.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", h.getState)
		v1.POST("/intents", h.postIntent)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/cart/summary", h.cartSummary)
		v1.POST("/password/strength", h.passwordStrength)
		v1.GET("/admin/stats", h.adminStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getState returns the current snapshot without passwords
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot().Redacted())
}

// postIntent decodes a tagged intent and dispatches it, or enqueues it when ?async=true
func (h *Handler) postIntent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	in, err := state.DecodeIntent(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, state.ErrUnknownIntent) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "Invalid intent",
			"reason":  state.Reason(err),
			"details": err.Error(),
		})
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.enqueueIntent(c, in)
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		seen, err := h.idempotency.CheckIdempotencyKey(c.Request.Context(), key)
		if err != nil {
			h.logger.Warn("Idempotency check failed", zap.String("key", key), zap.Error(err))
		} else if seen {
			h.logger.Info("Duplicate intent request detected",
				zap.String("idempotency_key", key),
				zap.String("kind", string(in.Kind())))
			c.JSON(http.StatusOK, gin.H{
				"kind":      in.Kind(),
				"applied":   false,
				"duplicate": true,
				"state":     h.store.Snapshot().Redacted(),
			})
			return
		}
	}

	result, err := h.store.Dispatch(c.Request.Context(), in)
	if err != nil {
		c.JSON(statusForReason(result.Reason), gin.H{
			"kind":    result.Kind,
			"applied": false,
			"reason":  result.Reason,
			"error":   err.Error(),
		})
		return
	}

	if key != "" && h.idempotency != nil {
		if err := h.idempotency.SetIdempotencyKey(c.Request.Context(), key, string(result.Kind), h.idempotencyTTL); err != nil {
			h.logger.Warn("Failed to store idempotency key", zap.String("key", key), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":    result.Kind,
		"applied": true,
		"state":   result.Snapshot.Redacted(),
	})
}

func (h *Handler) enqueueIntent(c *gin.Context, in state.Intent) {
	if h.commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Asynchronous intake is not enabled",
		})
		return
	}

	encoded, err := state.EncodeIntent(in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to encode intent",
			"details": err.Error(),
		})
		return
	}

	eventID, err := h.commands.PublishIntentCommand(c.Request.Context(), encoded)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue intent",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"kind":     in.Kind(),
		"event_id": eventID,
	})
}

// listProducts handles catalog search
func (h *Handler) listProducts(c *gin.Context) {
	products := state.QueryCatalog(h.store.Snapshot().Products, state.CatalogQuery{
		Search:   c.Query("q"),
		Category: c.Query("category"),
		SortBy:   c.Query("sort"),
	})

	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	product, ok := state.FindProduct(h.store.Snapshot().Products, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}

	c.JSON(http.StatusOK, product)
}

// cartSummary returns the checkout totals of the current cart
func (h *Handler) cartSummary(c *gin.Context) {
	snap := h.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"items":   snap.Cart,
		"summary": state.SummarizeCart(snap.Cart),
	})
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// passwordStrength scores a candidate password
func (h *Handler) passwordStrength(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	strength := state.ValidatePassword(req.Password)
	c.JSON(http.StatusOK, gin.H{
		"strength":   strength,
		"acceptable": strength.Score >= state.MinPasswordScore,
	})
}

// adminStats returns dashboard counters; only the logged-in administrator may read them
func (h *Handler) adminStats(c *gin.Context) {
	snap := h.store.Snapshot()
	if snap.CurrentUser == nil || !snap.CurrentUser.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Administrator session required",
		})
		return
	}

	c.JSON(http.StatusOK, state.ComputeStats(snap))
}

// statusForReason maps a rejection reason to an HTTP status
func statusForReason(reason string) int {
	switch reason {
	case "not_found":
		return http.StatusNotFound
	case "invalid_credentials", "not_authenticated":
		return http.StatusUnauthorized
	case "account_inactive":
		return http.StatusForbidden
	case "duplicate_email", "last_admin":
		return http.StatusConflict
	case "internal":
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// requestLogger logs every request through zap
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
