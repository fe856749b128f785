package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/pricing"
	"github.com/chainfeed/gateway/internal/repository"
	"github.com/chainfeed/gateway/internal/storage"
)

// KeyPrefix marks keys issued by this gateway.
const KeyPrefix = "cfd_"

type APIKeyService struct {
	keys  *repository.APIKeyRepository
	tiers *repository.TierRepository
	redis *storage.RedisClient
}

func NewAPIKeyService(keys *repository.APIKeyRepository, tiers *repository.TierRepository, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{
		keys:  keys,
		tiers: tiers,
		redis: redis,
	}
}

// Create issues a new key. categories restricts which endpoint categories
// the key may call; empty means all.
func (s *APIKeyService) Create(ctx context.Context, name, createdBy, tier string, categories []string) (string, error) {
	// Reject unknown tiers and categories up front so keys never reference
	// config that doesn't exist.
	tierConfig, err := s.tiers.FindByName(ctx, tier)
	if err != nil {
		return "", err
	}
	if tierConfig == nil {
		return "", fmt.Errorf("unknown tier %q", tier)
	}

	for _, category := range categories {
		if !pricing.ValidCategory(pricing.Category(category)) {
			return "", fmt.Errorf("unknown category %q", category)
		}
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	key := KeyPrefix + base64.URLEncoding.EncodeToString(keyBytes)

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := models.APIKey{
		KeyHash:    keyHash,
		Name:       name,
		CreatedBy:  createdBy,
		Tier:       tier,
		Categories: strings.Join(categories, ","),
		IsActive:   true,
	}

	if err := s.keys.Create(ctx, &apiKey); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	// Return plain key (only time it's visible)
	return key, nil
}

func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	cacheKey := fmt.Sprintf("apikey:cache:%s", keyHash)
	cached, err := s.redis.Get(ctx, cacheKey)

	if err == nil && cached != "" {
		var apiKey models.APIKey
		if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
			return &apiKey, nil
		}
	}

	apiKey, err := s.keys.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	if apiKey == nil {
		return nil, nil
	}

	apiKeyJSON, _ := json.Marshal(apiKey)
	s.redis.Set(ctx, cacheKey, apiKeyJSON, 5*time.Minute)

	return apiKey, nil
}

// ResolveTier looks up the tier configuration for a validated key.
func (s *APIKeyService) ResolveTier(ctx context.Context, apiKey *models.APIKey) (*models.APIKeyTier, error) {
	return s.tiers.FindByName(ctx, apiKey.Tier)
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return s.keys.FindByID(ctx, id)
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.keys.List(ctx)
}

func (s *APIKeyService) ListTiers(ctx context.Context) ([]models.APIKeyTier, error) {
	return s.tiers.List(ctx)
}

func (s *APIKeyService) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if _, hasTier := updates["tier"]; hasTier {
		s.invalidateCache(ctx, id)
	}
	if _, hasActive := updates["is_active"]; hasActive {
		s.invalidateCache(ctx, id)
	}

	return s.keys.Update(ctx, id, updates)
}

func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	s.invalidateCache(ctx, id)

	return s.keys.Delete(ctx, id)
}

func (s *APIKeyService) UpdateLastUsed(ctx context.Context, id uuid.UUID) {
	s.keys.UpdateLastUsed(ctx, id)
}

func (s *APIKeyService) invalidateCache(ctx context.Context, id string) {
	apiKey, err := s.keys.FindByID(ctx, id)
	if err != nil || apiKey == nil {
		return
	}

	s.redis.Del(ctx, fmt.Sprintf("apikey:cache:%s", apiKey.KeyHash))
}
