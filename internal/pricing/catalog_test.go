package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	return NewCatalog([]Record{
		{Endpoint: "/api/news", PriceUSD: decimal.RequireFromString("0.01"), Category: CategoryNews, RequestsPerWindow: 60},
		{Endpoint: "/api/news/breaking", PriceUSD: decimal.RequireFromString("0.05"), Category: CategoryNews, RequestsPerWindow: 10},
		{Endpoint: "/api/v1/coins", PriceUSD: decimal.RequireFromString("0.02"), Category: CategoryMarket, RequestsPerWindow: 30},
		{Endpoint: "/api/v1/pass", PriceUSD: decimal.RequireFromString("1.00"), Category: CategoryPass, RequestsPerWindow: 10, GrantDurationSeconds: 3600, PassTier: "pro"},
	})
}

func TestCatalogLookupExactMatch(t *testing.T) {
	catalog := testCatalog(t)

	record, ok := catalog.Lookup("/api/news")
	require.True(t, ok)
	assert.Equal(t, "/api/news", record.Endpoint)
}

func TestCatalogLookupPrefersExactOverPrefix(t *testing.T) {
	catalog := testCatalog(t)

	// /api/news is a prefix of /api/news/breaking, but the exact entry wins.
	record, ok := catalog.Lookup("/api/news/breaking")
	require.True(t, ok)
	assert.Equal(t, "/api/news/breaking", record.Endpoint)
}

func TestCatalogLookupLongestPrefix(t *testing.T) {
	catalog := testCatalog(t)

	record, ok := catalog.Lookup("/api/news/breaking/today")
	require.True(t, ok)
	assert.Equal(t, "/api/news/breaking", record.Endpoint)

	record, ok = catalog.Lookup("/api/news/latest")
	require.True(t, ok)
	assert.Equal(t, "/api/news", record.Endpoint)
}

func TestCatalogLookupNotFound(t *testing.T) {
	catalog := testCatalog(t)

	_, ok := catalog.Lookup("/api/portfolio")
	assert.False(t, ok)
}

func TestRequiredAtomicAmount(t *testing.T) {
	catalog := testCatalog(t)

	amount, ok := catalog.RequiredAtomicAmount("/api/v1/coins")
	require.True(t, ok)
	assert.Equal(t, "20000", amount.String())

	amount, ok = catalog.RequiredAtomicAmount("/api/v1/pass")
	require.True(t, ok)
	assert.Equal(t, "1000000", amount.String())
}

func TestAtomicAmountRounding(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{"0.02", "20000"},
		{"1", "1000000"},
		{"0", "0"},
		{"0.000001", "1"},
		// Round half up at the sixth decimal place.
		{"0.0000005", "1"},
		{"0.0000004", "0"},
		{"12.345678", "12345678"},
	}

	for _, tt := range tests {
		got := AtomicAmount(decimal.RequireFromString(tt.price))
		assert.Equal(t, tt.want, got.String(), "price %s", tt.price)
	}
}

func TestRecordPass(t *testing.T) {
	catalog := testCatalog(t)

	record, ok := catalog.Lookup("/api/v1/pass")
	require.True(t, ok)
	assert.True(t, record.Pass())

	record, ok = catalog.Lookup("/api/news")
	require.True(t, ok)
	assert.False(t, record.Pass())
}
