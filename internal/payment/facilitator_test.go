package payment

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilitatorClientSettle(t *testing.T) {
	var got settleRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/settle", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(settleResponse{Valid: true, SettlementID: "0xsettled"})
	}))
	defer server.Close()

	client := NewFacilitatorClient(server.URL, time.Second)

	payload := testPayload(time.Now())
	result, err := client.Settle(context.Background(), payload, "/api/v1/coins", big.NewInt(20000))
	require.NoError(t, err)

	assert.True(t, result.Confirmed)
	assert.Equal(t, "0xsettled", result.SettlementID)
	assert.Equal(t, "/api/v1/coins", got.Resource)
	assert.Equal(t, "20000", got.ExpectedAmount)
	assert.Equal(t, payload.Payload.Authorization.From, got.PaymentPayload.Payload.Authorization.From)
}

func TestFacilitatorClientRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(settleResponse{Valid: false, Reason: "signature mismatch"})
	}))
	defer server.Close()

	client := NewFacilitatorClient(server.URL, time.Second)

	result, err := client.Settle(context.Background(), testPayload(time.Now()), "/api/news", big.NewInt(1))
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
}

func TestFacilitatorClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewFacilitatorClient(server.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Settle(context.Background(), testPayload(time.Now()), "/api/news", big.NewInt(1))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestFacilitatorClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewFacilitatorClient(server.URL, time.Second)

	_, err := client.Settle(context.Background(), testPayload(time.Now()), "/api/news", big.NewInt(1))
	assert.Error(t, err)
}

func TestFacilitatorClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewFacilitatorClient(server.URL, time.Second)

	for i := 0; i < 10; i++ {
		client.Settle(context.Background(), testPayload(time.Now()), "/api/news", big.NewInt(1))
	}

	// After the breaker trips, calls fail fast without reaching the server.
	assert.Equal(t, 5, hits)
}
