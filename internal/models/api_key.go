package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is a subscription credential for the priced data endpoints. Only the
// sha256 of the issued key is stored. Categories restricts which endpoint
// categories the key may call; empty means all.
type APIKey struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	KeyHash    string     `gorm:"uniqueIndex;not null" json:"-"`
	Name       string     `gorm:"not null" json:"name"`
	CreatedBy  string     `json:"created_by"`
	Tier       string     `gorm:"default:'free'" json:"tier"`
	Categories string     `json:"categories,omitempty"` // comma-separated category grants
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// CategoryAllowed reports whether the key may call endpoints in the given
// category.
func (a *APIKey) CategoryAllowed(category string) bool {
	if a.Categories == "" {
		return true
	}

	for _, granted := range strings.Split(a.Categories, ",") {
		if strings.TrimSpace(granted) == category {
			return true
		}
	}

	return false
}

func (APIKey) TableName() string {
	return "api_keys"
}
