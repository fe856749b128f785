package models

import (
	"time"

	"github.com/google/uuid"
)

// Represents a logged request against a priced endpoint
type RequestLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	APIKeyID       *uuid.UUID `gorm:"index" json:"api_key_id,omitempty"`
	Wallet         string     `gorm:"index" json:"wallet,omitempty"`
	AuthKind       string     `gorm:"index" json:"auth_kind"` // "api_key" "pass" "payment" "anonymous"
	Method         string     `json:"method"`
	Path           string     `gorm:"index" json:"path"`
	StatusCode     int        `gorm:"index" json:"status_code"`
	ResponseTimeMs int        `json:"response_time_ms"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	SettlementID   string     `json:"settlement_id,omitempty"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
