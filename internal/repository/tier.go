package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/storage"
)

type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) FindByName(ctx context.Context, name string) (*models.APIKeyTier, error) {
	var tier models.APIKeyTier
	err := r.db.DB.WithContext(ctx).
		Where("name = ?", name).
		First(&tier).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &tier, err
}

func (r *TierRepository) List(ctx context.Context) ([]models.APIKeyTier, error) {
	var tiers []models.APIKeyTier
	err := r.db.DB.WithContext(ctx).
		Order("name").
		Find(&tiers).Error

	return tiers, err
}

// Seed upserts the configured tiers at startup so the table always reflects
// the deployed configuration.
func (r *TierRepository) Seed(ctx context.Context, tiers []models.APIKeyTier) error {
	if len(tiers) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"requests_per_day", "features"}),
		}).
		Create(&tiers).Error
}
