package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/storage"
)

// EndpointStat aggregates traffic for one priced endpoint.
type EndpointStat struct {
	Path              string  `json:"path"`
	Requests          int64   `json:"requests"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

type RequestLogRepository struct {
	db *storage.Postgres
}

func NewRequestLogRepository(db *storage.Postgres) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// CreateBatch inserts logs accumulated by the async logger.
func (r *RequestLogRepository) CreateBatch(ctx context.Context, logs []models.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

// CountForKey counts a key's successful requests since the given instant.
// Only 2xx responses count against the quota report, matching the limiter's
// view (rejected calls never consumed a window slot).
func (r *RequestLogRepository) CountForKey(ctx context.Context, keyID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("api_key_id = ? AND timestamp >= ? AND status_code BETWEEN 200 AND 299", keyID, since).
		Count(&count).Error

	return count, err
}

// EndpointStats aggregates request counts and latency per endpoint over a
// time range, busiest first.
func (r *RequestLogRepository) EndpointStats(ctx context.Context, from, to time.Time) ([]EndpointStat, error) {
	var stats []EndpointStat
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Select("path, count(*) as requests, avg(response_time_ms) as avg_response_time_ms").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("path").
		Order("requests DESC").
		Scan(&stats).Error

	return stats, err
}

// FindByTimeRange retrieves raw logs within a time range, newest first.
func (r *RequestLogRepository) FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	var logs []models.RequestLog
	err := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}
