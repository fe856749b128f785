package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// SettlementResult is the facilitator's verdict on a payment payload.
type SettlementResult struct {
	Confirmed    bool
	SettlementID string
}

// Facilitator settles payment proofs on-chain. The gateway treats it as an
// opaque remote call: send the proof, get a confirmation or a rejection.
type Facilitator interface {
	Settle(ctx context.Context, payload *Payload, resource string, expectedAmount *big.Int) (SettlementResult, error)
}

type settleRequest struct {
	PaymentPayload *Payload `json:"paymentPayload"`
	Resource       string   `json:"resource"`
	ExpectedAmount string   `json:"expectedAmount"`
}

type settleResponse struct {
	Valid        bool   `json:"valid"`
	SettlementID string `json:"settlementId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// FacilitatorClient calls a remote facilitator over HTTP. The call runs
// under the client timeout and behind a circuit breaker so a hung
// facilitator cannot stall request handling.
type FacilitatorClient struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewFacilitatorClient(endpoint string, timeout time.Duration) *FacilitatorClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "facilitator",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &FacilitatorClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
	}
}

func (f *FacilitatorClient) Settle(ctx context.Context, payload *Payload, resource string, expectedAmount *big.Int) (SettlementResult, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.settle(ctx, payload, resource, expectedAmount)
	})
	if err != nil {
		return SettlementResult{}, err
	}

	return result.(SettlementResult), nil
}

func (f *FacilitatorClient) settle(ctx context.Context, payload *Payload, resource string, expectedAmount *big.Int) (SettlementResult, error) {
	body, err := json.Marshal(settleRequest{
		PaymentPayload: payload,
		Resource:       resource,
		ExpectedAmount: expectedAmount.String(),
	})
	if err != nil {
		return SettlementResult{}, fmt.Errorf("failed to encode settle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"/settle", bytes.NewReader(body))
	if err != nil {
		return SettlementResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SettlementResult{}, fmt.Errorf("facilitator returned status %d", resp.StatusCode)
	}

	var settled settleResponse
	if err := json.NewDecoder(resp.Body).Decode(&settled); err != nil {
		return SettlementResult{}, fmt.Errorf("failed to parse facilitator response: %w", err)
	}

	return SettlementResult{
		Confirmed:    settled.Valid,
		SettlementID: settled.SettlementID,
	}, nil
}
