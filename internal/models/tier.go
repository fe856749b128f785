package models

// APIKeyTier is static subscription configuration resolved from an API key.
// RequestsPerDay of -1 means unlimited.
type APIKeyTier struct {
	Name           string `gorm:"primaryKey" json:"name"`
	RequestsPerDay int    `gorm:"not null" json:"requests_per_day"`
	Features       string `gorm:"not null" json:"features"` // comma-separated feature flags
}

func (APIKeyTier) TableName() string {
	return "api_key_tiers"
}

func (t *APIKeyTier) Unlimited() bool {
	return t.RequestsPerDay == -1
}
