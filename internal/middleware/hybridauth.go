package middleware

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chainfeed/gateway/internal/accesspass"
	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/payment"
	"github.com/chainfeed/gateway/internal/pricing"
	"github.com/chainfeed/gateway/internal/ratelimit"
)

// APIKeyResolver resolves raw API keys to their tier configuration.
// Implemented by service.APIKeyService.
type APIKeyResolver interface {
	Validate(ctx context.Context, key string) (*models.APIKey, error)
	ResolveTier(ctx context.Context, apiKey *models.APIKey) (*models.APIKeyTier, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID)
}

// Stable machine-readable error codes for terminal responses.
const (
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeCategoryForbidden = "category_forbidden"
	CodePaymentRequired   = "payment_required"
	CodePaymentInvalid    = "payment_invalid"
	CodeRateLimitExceeded = "rate_limit_exceeded"
)

// Credential headers. The API key may also arrive as the api_key query
// parameter.
const (
	HeaderAPIKey = "X-API-Key"
	HeaderWallet = "X-Wallet-Address"
)

const (
	tierWindow    = 24 * time.Hour
	paymentWindow = time.Minute
)

type HybridAuthConfig struct {
	// PassMultiplier scales the endpoint's per-minute limit for wallets
	// holding a valid access pass.
	PassMultiplier int
}

// HybridAuth gates priced endpoints. Credentials are tried in a fixed
// order: API key, then wallet access pass, then payment proof. Each branch
// either proceeds (c.Next with rate-limit headers) or terminates the
// request; whoever runs after us can assume access was granted.
func HybridAuth(
	catalog *pricing.Catalog,
	limiter ratelimit.Limiter,
	passes accesspass.Store,
	verifier *payment.Verifier,
	keys APIKeyResolver,
	builder *payment.Builder,
	cfg HybridAuthConfig,
) gin.HandlerFunc {
	if cfg.PassMultiplier <= 0 {
		cfg.PassMultiplier = 10
	}

	return func(c *gin.Context) {
		record, ok := catalog.Lookup(c.Request.URL.Path)
		if !ok {
			// Unpriced endpoint, nothing to gate.
			c.Next()
			return
		}

		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		apiKey = strings.TrimSpace(apiKey)

		wallet := strings.TrimSpace(c.GetHeader(HeaderWallet))
		proof := c.GetHeader(payment.HeaderPayment)

		switch {
		case apiKey != "":
			handleAPIKey(c, record, limiter, keys, apiKey)
		case wallet != "":
			handleWallet(c, record, limiter, passes, verifier, builder, cfg, wallet, proof)
		case proof != "":
			handlePayment(c, record, limiter, passes, verifier, builder, proof)
		default:
			sendPaymentRequired(c, record, builder)
		}
	}
}

func handleAPIKey(c *gin.Context, record *pricing.Record, limiter ratelimit.Limiter, keys APIKeyResolver, rawKey string) {
	ctx := c.Request.Context()

	key, err := keys.Validate(ctx, rawKey)
	if err != nil || key == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   CodeInvalidAPIKey,
			"message": "Invalid or inactive API key",
		})
		c.Abort()
		return
	}

	if !key.CategoryAllowed(string(record.Category)) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":    CodeCategoryForbidden,
			"message":  fmt.Sprintf("This key is not granted the %s category", record.Category),
			"category": string(record.Category),
		})
		c.Abort()
		return
	}

	tier, err := keys.ResolveTier(ctx, key)
	if err != nil || tier == nil {
		// A key whose tier no longer exists cannot be resolved to a quota.
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   CodeInvalidAPIKey,
			"message": "API key tier is not recognized",
		})
		c.Abort()
		return
	}

	result, err := limiter.Check(ctx, "apikey:"+key.ID.String(), tier.RequestsPerDay, tierWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
		c.Abort()
		return
	}

	setRateLimitHeaders(c, tier.RequestsPerDay, result)

	if !result.Allowed {
		rateLimited(c, gin.H{
			"error":    CodeRateLimitExceeded,
			"message":  fmt.Sprintf("Daily limit for the %s tier exhausted. Upgrade your tier for a higher quota.", tier.Name),
			"tier":     tier.Name,
			"limit":    tier.RequestsPerDay,
			"reset_at": result.ResetAt.Unix(),
		}, result.ResetAt)
		return
	}

	c.Set("auth_kind", "api_key")
	c.Set("api_key_id", key.ID)
	c.Set("api_key_tier", tier.Name)

	// The update outlives the request, so detach it from the request's
	// cancellation.
	go keys.UpdateLastUsed(context.WithoutCancel(ctx), key.ID)

	c.Next()
}

func handleWallet(
	c *gin.Context,
	record *pricing.Record,
	limiter ratelimit.Limiter,
	passes accesspass.Store,
	verifier *payment.Verifier,
	builder *payment.Builder,
	cfg HybridAuthConfig,
	wallet, proof string,
) {
	ctx := c.Request.Context()

	pass, valid, err := passes.Check(ctx, wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access pass lookup failed"})
		c.Abort()
		return
	}

	if !valid {
		// No live pass: a supplied proof can still buy this request.
		if proof != "" {
			handlePayment(c, record, limiter, passes, verifier, builder, proof)
			return
		}
		sendPaymentRequired(c, record, builder)
		return
	}

	limit := record.RequestsPerWindow
	if limit != ratelimit.Unlimited {
		limit *= cfg.PassMultiplier
	}

	result, err := limiter.Check(ctx, "wallet:"+strings.ToLower(wallet), limit, paymentWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
		c.Abort()
		return
	}

	setRateLimitHeaders(c, limit, result)

	if !result.Allowed {
		rateLimited(c, gin.H{
			"error":    CodeRateLimitExceeded,
			"message":  "Per-minute limit for this access pass exceeded",
			"limit":    limit,
			"reset_at": result.ResetAt.Unix(),
		}, result.ResetAt)
		return
	}

	c.Set("auth_kind", "pass")
	c.Set("wallet", strings.ToLower(wallet))
	c.Set("pass_tier", pass.Tier)

	c.Next()
}

func handlePayment(
	c *gin.Context,
	record *pricing.Record,
	limiter ratelimit.Limiter,
	passes accesspass.Store,
	verifier *payment.Verifier,
	builder *payment.Builder,
	proof string,
) {
	ctx := c.Request.Context()
	resource := c.Request.URL.Path
	required := pricing.AtomicAmount(record.PriceUSD)

	result := verifier.Verify(ctx, proof, required, resource, builder.PayTo())
	if !result.Valid {
		reqs := builder.ForRecord(record, resource)
		applyHeaders(c, builder.Headers(reqs, record.PriceUSD))

		body := paymentOfferBody(record, required, reqs)
		body["error"] = CodePaymentInvalid
		body["reason"] = string(result.Reason)
		body["message"] = "Payment proof was rejected"

		c.JSON(http.StatusPaymentRequired, body)
		c.Abort()
		return
	}

	// Abandon a cancelled request before touching shared state.
	if ctx.Err() != nil {
		c.Abort()
		return
	}

	if record.Pass() {
		duration := time.Duration(record.GrantDurationSeconds) * time.Second
		if err := passes.Grant(ctx, result.WalletAddress, duration, record.PassTier); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant access pass"})
			c.Abort()
			return
		}
	}

	check, err := limiter.Check(ctx, "wallet:"+result.WalletAddress, record.RequestsPerWindow, paymentWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
		c.Abort()
		return
	}

	setRateLimitHeaders(c, record.RequestsPerWindow, check)

	if !check.Allowed {
		rateLimited(c, gin.H{
			"error":    CodeRateLimitExceeded,
			"message":  "Per-minute limit exceeded. Purchase an access pass for a higher burst limit.",
			"limit":    record.RequestsPerWindow,
			"reset_at": check.ResetAt.Unix(),
		}, check.ResetAt)
		return
	}

	c.Set("auth_kind", "payment")
	c.Set("wallet", result.WalletAddress)
	if result.SettlementID != "" {
		c.Set("settlement_id", result.SettlementID)
		c.Header("X-Settlement-Id", result.SettlementID)
	}
	if result.Degraded {
		c.Header("X-Payment-Unconfirmed", "true")
	}

	c.Next()
}

func sendPaymentRequired(c *gin.Context, record *pricing.Record, builder *payment.Builder) {
	resource := c.Request.URL.Path
	required := pricing.AtomicAmount(record.PriceUSD)
	reqs := builder.ForRecord(record, resource)

	applyHeaders(c, builder.Headers(reqs, record.PriceUSD))

	body := paymentOfferBody(record, required, reqs)
	body["error"] = CodePaymentRequired
	body["message"] = fmt.Sprintf("This endpoint costs $%s per request. Pay via x402 or supply an API key.", record.PriceUSD.String())

	c.JSON(http.StatusPaymentRequired, body)
	c.Abort()
}

// paymentOfferBody is the common 402 payload: every payment-required
// response, whatever triggered it, carries the same offer fields.
func paymentOfferBody(record *pricing.Record, required *big.Int, reqs payment.Requirements) gin.H {
	body := gin.H{
		"price_usd":    record.PriceUSD.String(),
		"price_atomic": required.String(),
		"features":     categoryFeatures(record.Category),
		"x402":         reqs,
	}
	if record.FreeAlternative != "" {
		body["free_alternative"] = record.FreeAlternative
	}

	return body
}

func categoryFeatures(category pricing.Category) []string {
	switch category {
	case pricing.CategoryMarket:
		return []string{"real-time prices", "market caps", "24h volumes"}
	case pricing.CategoryNews:
		return []string{"aggregated headlines", "source filtering", "keyword search"}
	case pricing.CategoryDefi:
		return []string{"protocol TVL", "yield data"}
	case pricing.CategoryAnalytics:
		return []string{"trending topics", "sentiment analysis"}
	case pricing.CategoryPass:
		return []string{"elevated rate limits", "no per-request payment"}
	default:
		return nil
	}
}

func setRateLimitHeaders(c *gin.Context, limit int, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	if !result.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))
	}
}

func rateLimited(c *gin.Context, body gin.H, resetAt time.Time) {
	retryAfter := int(time.Until(resetAt).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}

	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	c.JSON(http.StatusTooManyRequests, body)
	c.Abort()
}

func applyHeaders(c *gin.Context, headers map[string]string) {
	for name, value := range headers {
		c.Header(name, value)
	}
}
