package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayTo = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"

type fakeFacilitator struct {
	result SettlementResult
	err    error

	called         bool
	gotResource    string
	gotExpectedAmt string
}

func (f *fakeFacilitator) Settle(ctx context.Context, payload *Payload, resource string, expectedAmount *big.Int) (SettlementResult, error) {
	f.called = true
	f.gotResource = resource
	f.gotExpectedAmt = expectedAmount.String()
	return f.result, f.err
}

func testPayload(now time.Time) *Payload {
	return &Payload{
		X402Version: ProtocolVersion,
		Scheme:      SchemeExact,
		Network:     "base",
		Payload: ExactPayload{
			Signature: "0xdeadbeef",
			Authorization: Authorization{
				From:        "0xBuyerWallet00000000000000000000000000001",
				To:          testPayTo,
				Asset:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				Amount:      "20000",
				Nonce:       "1717243200000",
				ValidAfter:  now.Unix() - 10,
				ValidBefore: now.Unix() + 60,
			},
		},
	}
}

func encode(t *testing.T, p *Payload) string {
	t.Helper()

	header, err := p.Encode()
	require.NoError(t, err)
	return header
}

func newTestVerifier(facilitator Facilitator, allowDegraded bool, now time.Time) *Verifier {
	v := NewVerifier(facilitator, allowDegraded)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifySuccess(t *testing.T) {
	now := time.Now()
	facilitator := &fakeFacilitator{result: SettlementResult{Confirmed: true, SettlementID: "settle-1"}}
	v := newTestVerifier(facilitator, false, now)

	result := v.Verify(context.Background(), encode(t, testPayload(now)), big.NewInt(20000), "/api/v1/coins", testPayTo)

	require.True(t, result.Valid)
	assert.Equal(t, "0xbuyerwallet00000000000000000000000000001", result.WalletAddress)
	assert.Equal(t, "20000", result.AmountPaid.String())
	assert.Equal(t, "settle-1", result.SettlementID)
	assert.False(t, result.Degraded)

	assert.True(t, facilitator.called)
	assert.Equal(t, "/api/v1/coins", facilitator.gotResource)
	assert.Equal(t, "20000", facilitator.gotExpectedAmt)
}

func TestVerifyMalformedPayload(t *testing.T) {
	v := newTestVerifier(&fakeFacilitator{}, false, time.Now())

	for _, header := range []string{"not base64!!!", "aGVsbG8=", ""} {
		result := v.Verify(context.Background(), header, big.NewInt(1), "/api/news", testPayTo)
		assert.False(t, result.Valid)
		assert.Equal(t, ReasonMalformedPayload, result.Reason)
	}
}

func TestVerifyUnsupportedVersion(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{}, false, now)

	payload := testPayload(now)
	payload.X402Version = 1

	result := v.Verify(context.Background(), encode(t, payload), big.NewInt(20000), "/api/news", testPayTo)
	assert.Equal(t, ReasonUnsupportedVersion, result.Reason)
}

func TestVerifyUnsupportedScheme(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{}, false, now)

	payload := testPayload(now)
	payload.Scheme = "upto"

	result := v.Verify(context.Background(), encode(t, payload), big.NewInt(20000), "/api/news", testPayTo)
	assert.Equal(t, ReasonUnsupportedScheme, result.Reason)
}

func TestVerifyInsufficientAmount(t *testing.T) {
	now := time.Now()
	facilitator := &fakeFacilitator{result: SettlementResult{Confirmed: true}}
	v := newTestVerifier(facilitator, false, now)

	// One atomic unit short.
	payload := testPayload(now)
	payload.Payload.Authorization.Amount = "19999"

	result := v.Verify(context.Background(), encode(t, payload), big.NewInt(20000), "/api/news", testPayTo)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonInsufficientAmount, result.Reason)
	assert.False(t, facilitator.called)
}

func TestVerifyAmountComparedAsInteger(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{result: SettlementResult{Confirmed: true}}, false, now)

	// Larger than any float64 can represent exactly.
	huge := "123456789012345678901234567890"
	payload := testPayload(now)
	payload.Payload.Authorization.Amount = huge

	required, _ := new(big.Int).SetString(huge, 10)
	result := v.Verify(context.Background(), encode(t, payload), required, "/api/news", testPayTo)
	assert.True(t, result.Valid)
}

func TestVerifyWrongRecipient(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{}, false, now)

	payload := testPayload(now)
	payload.Payload.Authorization.To = "0x0000000000000000000000000000000000000bad"

	result := v.Verify(context.Background(), encode(t, payload), big.NewInt(20000), "/api/news", testPayTo)
	assert.Equal(t, ReasonWrongRecipient, result.Reason)
}

func TestVerifyRecipientCaseInsensitive(t *testing.T) {
	now := time.Now()
	facilitator := &fakeFacilitator{result: SettlementResult{Confirmed: true}}
	v := newTestVerifier(facilitator, false, now)

	payload := testPayload(now)
	payload.Payload.Authorization.To = "0X209693BC6AFC0C5328BA36FAF03C514EF312287C"

	result := v.Verify(context.Background(), encode(t, payload), big.NewInt(20000), "/api/news", testPayTo)
	assert.True(t, result.Valid)
}

func TestVerifyTimeBounds(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{}, false, now)

	notYet := testPayload(now)
	notYet.Payload.Authorization.ValidAfter = now.Unix() + 30

	result := v.Verify(context.Background(), encode(t, notYet), big.NewInt(20000), "/api/news", testPayTo)
	assert.Equal(t, ReasonNotYetValid, result.Reason)

	expired := testPayload(now)
	expired.Payload.Authorization.ValidBefore = now.Unix() - 1

	result = v.Verify(context.Background(), encode(t, expired), big.NewInt(20000), "/api/news", testPayTo)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestVerifySettlementRejected(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{result: SettlementResult{Confirmed: false}}, false, now)

	result := v.Verify(context.Background(), encode(t, testPayload(now)), big.NewInt(20000), "/api/news", testPayTo)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonSettlementFailed, result.Reason)
}

func TestVerifyFacilitatorDownFailsClosed(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{err: errors.New("connection refused")}, false, now)

	result := v.Verify(context.Background(), encode(t, testPayload(now)), big.NewInt(20000), "/api/news", testPayTo)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonFacilitatorUnavailable, result.Reason)
}

func TestVerifyDegradedFallback(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{err: errors.New("timeout")}, true, now)

	result := v.Verify(context.Background(), encode(t, testPayload(now)), big.NewInt(20000), "/api/news", testPayTo)
	require.True(t, result.Valid)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.SettlementID)

	// A missing signature still rejects even in degraded mode.
	unsigned := testPayload(now)
	unsigned.Payload.Signature = ""

	result = v.Verify(context.Background(), encode(t, unsigned), big.NewInt(20000), "/api/news", testPayTo)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonFacilitatorUnavailable, result.Reason)
}

func TestVerifyCancelledContextNeverFallsBack(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(&fakeFacilitator{err: context.Canceled}, true, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := v.Verify(ctx, encode(t, testPayload(now)), big.NewInt(20000), "/api/news", testPayTo)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonFacilitatorUnavailable, result.Reason)
}
