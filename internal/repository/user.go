package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/storage"
)

type AdminUserRepository struct {
	db *storage.Postgres
}

func NewAdminUserRepository(db *storage.Postgres) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) Create(ctx context.Context, account *models.AdminUser) error {
	return r.db.DB.WithContext(ctx).Create(account).Error
}

func (r *AdminUserRepository) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var account models.AdminUser
	err := r.db.DB.WithContext(ctx).
		Where("email = ?", email).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return &account, err
}

func (r *AdminUserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	var account models.AdminUser
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return &account, err
}

func (r *AdminUserRepository) UpdatePayoutWallet(ctx context.Context, id, wallet string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", id).
		Update("payout_wallet", wallet).Error
}
