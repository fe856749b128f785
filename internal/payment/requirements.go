package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainfeed/gateway/internal/pricing"
)

// Requirement is one accepted payment method in a 402 response.
type Requirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MimeType          string `json:"mimeType"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// Requirements is the canonical x402 "payment required" object, returned in
// 402 bodies and base64-encoded in the X-PAYMENT-REQUIRED header.
type Requirements struct {
	X402Version int           `json:"x402Version"`
	Accepts     []Requirement `json:"accepts"`
}

const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentRequired = "X-PAYMENT-REQUIRED"
	HeaderPaymentPrice    = "X-Payment-Price"
	HeaderRequestID       = "X-Request-Id"
)

// Builder constructs protocol-exact payment requirements for any priced
// resource. The same builder serves plain 402s and pass-upgrade endpoints;
// only resource and description vary.
type Builder struct {
	payTo             string
	network           string
	asset             string
	maxTimeoutSeconds int
}

func NewBuilder(payTo, network, asset string, maxTimeoutSeconds int) *Builder {
	if maxTimeoutSeconds == 0 {
		maxTimeoutSeconds = 300
	}
	return &Builder{
		payTo:             payTo,
		network:           network,
		asset:             asset,
		maxTimeoutSeconds: maxTimeoutSeconds,
	}
}

func (b *Builder) PayTo() string {
	return b.payTo
}

func (b *Builder) Network() string {
	return b.network
}

// ForRecord builds requirements for a catalog record.
func (b *Builder) ForRecord(record *pricing.Record, resource string) Requirements {
	return b.ForAmount(pricing.AtomicAmount(record.PriceUSD), resource, record.Description)
}

// ForAmount builds requirements for an explicit atomic amount.
func (b *Builder) ForAmount(amount *big.Int, resource, description string) Requirements {
	return Requirements{
		X402Version: ProtocolVersion,
		Accepts: []Requirement{{
			Scheme:            SchemeExact,
			Network:           b.network,
			Asset:             b.asset,
			PayTo:             b.payTo,
			MaxAmountRequired: amount.String(),
			Resource:          resource,
			Description:       description,
			MimeType:          "application/json",
			MaxTimeoutSeconds: b.maxTimeoutSeconds,
		}},
	}
}

// Headers returns the header set that accompanies a 402: the USD price, a
// request correlation id, and a base64 copy of the requirements for clients
// that read headers instead of bodies.
func (b *Builder) Headers(reqs Requirements, priceUSD decimal.Decimal) map[string]string {
	encoded, _ := json.Marshal(reqs)

	return map[string]string{
		HeaderPaymentPrice:    fmt.Sprintf("$%s", priceUSD.String()),
		HeaderRequestID:       uuid.NewString(),
		HeaderPaymentRequired: base64.StdEncoding.EncodeToString(encoded),
	}
}
