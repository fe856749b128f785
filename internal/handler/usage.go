package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/ratelimit"
	"github.com/chainfeed/gateway/internal/repository"
)

// keyResolver is the slice of the key service the usage report needs.
type keyResolver interface {
	Validate(ctx context.Context, key string) (*models.APIKey, error)
	ResolveTier(ctx context.Context, apiKey *models.APIKey) (*models.APIKeyTier, error)
}

// usageLogs is the slice of the request-log repository backing the reports.
type usageLogs interface {
	CountForKey(ctx context.Context, keyID uuid.UUID, since time.Time) (int64, error)
	EndpointStats(ctx context.Context, from, to time.Time) ([]repository.EndpointStat, error)
	FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error)
}

// UsageHandler reports quota consumption to key holders and traffic stats
// to operators.
type UsageHandler struct {
	keys keyResolver
	logs usageLogs
	now  func() time.Time
}

func NewUsageHandler(keys keyResolver, logs usageLogs) *UsageHandler {
	return &UsageHandler{keys: keys, logs: logs, now: time.Now}
}

// Usage reports the calling key's tier, today's consumption, and when the
// daily window resets. Days roll over at midnight UTC.
func (h *UsageHandler) Usage(c *gin.Context) {
	rawKey := c.GetHeader("X-API-Key")
	if rawKey == "" {
		rawKey = c.Query("api_key")
	}
	if rawKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_api_key", "message": "API key required"})
		return
	}

	ctx := c.Request.Context()

	key, err := h.keys.Validate(ctx, rawKey)
	if err != nil || key == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_api_key", "message": "Invalid or inactive API key"})
		return
	}

	tier, err := h.keys.ResolveTier(ctx, key)
	if err != nil || tier == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_api_key", "message": "API key tier is not recognized"})
		return
	}

	now := h.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	used, err := h.logs.CountForKey(ctx, key.ID, dayStart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
		return
	}

	remaining := int64(ratelimit.Unlimited)
	if !tier.Unlimited() {
		remaining = int64(tier.RequestsPerDay) - used
		if remaining < 0 {
			remaining = 0
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":        tier.Name,
		"usage_today": used,
		"limit":       tier.RequestsPerDay,
		"remaining":   remaining,
		"reset_at":    dayStart.Add(24 * time.Hour).Unix(),
	})
}

// Stats aggregates per-endpoint traffic for operators. ?hours=N bounds the
// window (default 24, capped at 30 days).
func (h *UsageHandler) Stats(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	if hours > 720 {
		hours = 720
	}

	to := h.now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	stats, err := h.logs.EndpointStats(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":      from.Unix(),
		"to":        to.Unix(),
		"endpoints": stats,
	})
}

// Logs pages through raw request logs, newest first.
func (h *UsageHandler) Logs(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	to := h.now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	logs, err := h.logs.FindByTimeRange(c.Request.Context(), from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "log query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(logs), "logs": logs})
}
