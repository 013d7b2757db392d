package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storeops/internal/cleanup"
	"storeops/internal/middleware"
	"storeops/internal/models"
	"storeops/internal/ratelimit"
)

// DeletionQueue accepts deletions to run in the background.
type DeletionQueue interface {
	Enqueue(ctx context.Context, req cleanup.Request) (*models.StoreDeletionJob, error)
	Get(ctx context.Context, id int64) (*models.StoreDeletionJob, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// AdminHandler handles store deletion requests
type AdminHandler struct {
	service *cleanup.Service
	queue   DeletionQueue
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service *cleanup.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{service: service, logger: logger}
}

// WithQueue enables {"async": true} deletions and the job endpoints.
func (h *AdminHandler) WithQueue(q DeletionQueue) *AdminHandler {
	h.queue = q
	return h
}

// WithLimiter throttles real deletions. Dry runs are never throttled.
func (h *AdminHandler) WithLimiter(l *ratelimit.Limiter) *AdminHandler {
	h.limiter = l
	return h
}

// RegisterRoutes mounts the handler. Callers are authorized upstream.
func (h *AdminHandler) RegisterRoutes(r gin.IRouter) {
	admin := r.Group("/api/admin/stores")
	admin.POST("/delete", h.DeleteStore)
	admin.GET("/deletions", h.GetDeletionLogs)
	admin.GET("/deletions/stats", h.GetDeletionStats)
	admin.GET("/deletions/jobs/:id", h.GetDeletionJob)

	r.DELETE("/api/business/stores/:id", h.DeleteBusinessStore)
}

// DeleteStoreRequest is the body of POST /api/admin/stores/delete.
type DeleteStoreRequest struct {
	StoreID string `json:"storeId"`
	DryRun  bool   `json:"dryRun"`
	Async   bool   `json:"async"`
	Reason  string `json:"reason"`
}

// DeleteStore previews or deletes a store
// POST /api/admin/stores/delete {"storeId": "...", "dryRun": true}
func (h *AdminHandler) DeleteStore(c *gin.Context) {
	var req DeleteStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if req.StoreID == "" {
		respondError(c, badRequest("storeId is required"))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = models.DeletionReasonAdmin
	}
	request := cleanup.Request{
		StoreID:     req.StoreID,
		DryRun:      req.DryRun,
		RequestedBy: c.GetHeader("X-Requested-By"),
		Reason:      reason,
	}
	if req.Async && !req.DryRun {
		h.enqueue(c, request)
		return
	}
	h.run(c, request)
}

func (h *AdminHandler) enqueue(c *gin.Context, req cleanup.Request) {
	if h.queue == nil {
		respondError(c, badRequest("asynchronous deletion is not enabled"))
		return
	}
	if !h.allow(c, req) {
		return
	}
	ctx := c.Request.Context()

	info, err := h.service.FindStore(ctx, req.StoreID)
	if err == nil && info.Deleted {
		err = cleanup.ErrAlreadyDeleted
	}
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := h.queue.Enqueue(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.LoggerFrom(c, h.logger).Info("Store deletion queued",
		zap.String("store_id", req.StoreID),
		zap.Int64("job_id", job.ID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job":     job,
	})
}

// GetDeletionJob returns one queued deletion
// GET /api/admin/stores/deletions/jobs/:id
func (h *AdminHandler) GetDeletionJob(c *gin.Context) {
	if h.queue == nil {
		respondError(c, badRequest("asynchronous deletion is not enabled"))
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, badRequest("invalid job id"))
		return
	}
	job, err := h.queue.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteBusinessStore previews or deletes a store owned by the caller's company
// DELETE /api/business/stores/:id?dryRun=true
func (h *AdminHandler) DeleteBusinessStore(c *gin.Context) {
	dryRun, err := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	if err != nil {
		respondError(c, badRequest("dryRun must be true or false"))
		return
	}
	h.run(c, cleanup.Request{
		StoreID:     c.Param("id"),
		DryRun:      dryRun,
		RequestedBy: c.GetHeader("X-Requested-By"),
		Reason:      models.DeletionReasonBusiness,
	})
}

func (h *AdminHandler) run(c *gin.Context, req cleanup.Request) {
	log := middleware.LoggerFrom(c, h.logger)

	if !h.allow(c, req) {
		return
	}

	result, err := h.service.DeleteStore(c.Request.Context(), req)
	if err != nil {
		log.Warn("Store deletion request failed",
			zap.String("store_id", req.StoreID),
			zap.Bool("dry_run", req.DryRun),
			zap.Error(err),
		)
		_ = c.Error(err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// allow applies the deletion throttle to real runs and writes the 429.
func (h *AdminHandler) allow(c *gin.Context, req cleanup.Request) bool {
	if req.DryRun || h.limiter.Allow() {
		return true
	}
	retry := h.limiter.RetryAfter()
	middleware.LoggerFrom(c, h.logger).Warn("Store deletion throttled",
		zap.String("store_id", req.StoreID),
		zap.Duration("retry_after", retry),
	)
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	respondError(c, ratelimit.ErrLimited)
	return false
}

// GetDeletionLogs returns recent deletion log entries
// GET /api/admin/stores/deletions?limit=50
func (h *AdminHandler) GetDeletionLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	logs, err := h.service.GetRecentDeletionLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetDeletionStats returns statistics about deleted stores
// GET /api/admin/stores/deletions/stats
func (h *AdminHandler) GetDeletionStats(c *gin.Context) {
	stats, err := h.service.GetDeletionStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	stats["rate_limit"] = h.limiter.Stats()
	if h.queue != nil {
		queue, err := h.queue.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		stats["queue"] = queue
	}
	c.JSON(http.StatusOK, stats)
}
