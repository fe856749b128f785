package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator roles. Admins manage keys and payout settings; viewers get
// read-only access to stats and logs.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// AdminUser is a gateway operator account. PayoutWallet is the address the
// operator registers for receiving settled payments; the active payTo comes
// from config, this records who set it.
type AdminUser struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Name         string    `json:"name"`
	Role         string    `gorm:"default:'admin'" json:"role"`
	PayoutWallet string    `json:"payout_wallet,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *AdminUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return nil
}

// CanWrite reports whether the account may mutate gateway state.
func (u *AdminUser) CanWrite() bool {
	return u.Role == RoleAdmin
}

func (AdminUser) TableName() string {
	return "admin_users"
}
