package middleware

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/repository"
)

// Buffered channel for async logging
var logChannel chan models.RequestLog

// InitRequestLogger starts the background worker that batch-inserts request
// logs so the hot path never waits on postgres.
func InitRequestLogger(repo *repository.RequestLogRepository, bufferSize int) {
	logChannel = make(chan models.RequestLog, bufferSize)

	go func() {
		batch := make([]models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := repo.CreateBatch(context.Background(), batch); err != nil {
				log.Printf("failed to insert request logs: %v", err)
			}
			batch = make([]models.RequestLog, 0, 100)
		}

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)
				if len(batch) >= 100 {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()
}

// RequestLogger records each priced-endpoint request with how it was
// authorized. Entries are dropped, not blocked on, when the buffer is full.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if logChannel == nil {
			return
		}

		entry := models.RequestLog{
			Timestamp:      start,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			AuthKind:       c.GetString("auth_kind"),
			Wallet:         c.GetString("wallet"),
			SettlementID:   c.GetString("settlement_id"),
		}
		if entry.AuthKind == "" {
			entry.AuthKind = "anonymous"
		}
		if id, ok := c.Get("api_key_id"); ok {
			if keyID, ok := id.(uuid.UUID); ok {
				entry.APIKeyID = &keyID
			}
		}

		select {
		case logChannel <- entry:
		default:
		}
	}
}
