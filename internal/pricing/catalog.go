package pricing

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AtomicDecimals is the decimal precision of the settlement asset (USDC).
const AtomicDecimals = 6

type Category string

const (
	CategoryMarket    Category = "market"
	CategoryNews      Category = "news"
	CategoryDefi      Category = "defi"
	CategoryAnalytics Category = "analytics"
	CategoryPass      Category = "pass"
)

// ValidCategory reports whether c names a known endpoint category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryMarket, CategoryNews, CategoryDefi, CategoryAnalytics, CategoryPass:
		return true
	}
	return false
}

// Record describes one priced endpoint. Immutable after catalog construction.
type Record struct {
	Endpoint             string
	PriceUSD             decimal.Decimal
	Category             Category
	RequestsPerWindow    int // per-minute limit for the payment path, -1 = unlimited
	GrantDurationSeconds int // > 0 only for access-pass products
	PassTier             string
	Description          string
	FreeAlternative      string
}

// Pass reports whether paying for this endpoint grants a time-bounded access pass.
func (r *Record) Pass() bool {
	return r.GrantDurationSeconds > 0
}

// Catalog is an ordered table of priced endpoints. Lookup prefers an exact
// endpoint match, then falls back to the longest configured prefix, so two
// records sharing a prefix resolve deterministically.
type Catalog struct {
	records []Record
}

func NewCatalog(records []Record) *Catalog {
	rs := make([]Record, len(records))
	copy(rs, records)
	return &Catalog{records: rs}
}

func (c *Catalog) Lookup(endpoint string) (*Record, bool) {
	for i := range c.records {
		if c.records[i].Endpoint == endpoint {
			return &c.records[i], true
		}
	}

	var best *Record
	bestLen := -1
	for i := range c.records {
		r := &c.records[i]
		if strings.HasPrefix(endpoint, r.Endpoint) && len(r.Endpoint) > bestLen {
			best = r
			bestLen = len(r.Endpoint)
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// RequiredAtomicAmount converts the endpoint's USD price into atomic token
// units. The conversion must match the facilitator's unit convention exactly,
// or every payment gets rejected for rounding drift.
func (c *Catalog) RequiredAtomicAmount(endpoint string) (*big.Int, bool) {
	record, ok := c.Lookup(endpoint)
	if !ok {
		return nil, false
	}
	return AtomicAmount(record.PriceUSD), true
}

// AtomicAmount converts a decimal USD price to atomic units using
// round-half-up at the asset's fixed precision.
func AtomicAmount(price decimal.Decimal) *big.Int {
	return price.Shift(AtomicDecimals).Round(0).BigInt()
}
