package payment

import (
	"context"
	"math/big"
	"strings"
	"time"
)

// Reason identifies why a payment proof was rejected. Codes are stable:
// client SDKs branch on them.
type Reason string

const (
	ReasonMalformedPayload       Reason = "MalformedPayload"
	ReasonUnsupportedVersion     Reason = "UnsupportedVersion"
	ReasonUnsupportedScheme      Reason = "UnsupportedScheme"
	ReasonInsufficientAmount     Reason = "InsufficientAmount"
	ReasonWrongRecipient         Reason = "WrongRecipient"
	ReasonNotYetValid            Reason = "NotYetValid"
	ReasonExpired                Reason = "Expired"
	ReasonSettlementFailed       Reason = "SettlementFailed"
	ReasonFacilitatorUnavailable Reason = "FacilitatorUnavailable"
)

type VerifyResult struct {
	Valid         bool
	Reason        Reason
	WalletAddress string
	AmountPaid    *big.Int
	SettlementID  string

	// Degraded marks proofs accepted through the fail-open fallback
	// without facilitator confirmation.
	Degraded bool
}

// Verifier validates a payment proof against a required price and delegates
// final settlement to the facilitator.
type Verifier struct {
	facilitator Facilitator

	// allowDegraded enables the fail-open fallback when the facilitator is
	// unreachable: a proof with a plausible signature shape is accepted
	// unconfirmed. Off by default; only for non-production environments.
	allowDegraded bool

	now func() time.Time
}

func NewVerifier(facilitator Facilitator, allowDegraded bool) *Verifier {
	return &Verifier{
		facilitator:   facilitator,
		allowDegraded: allowDegraded,
		now:           time.Now,
	}
}

func reject(reason Reason) VerifyResult {
	return VerifyResult{Valid: false, Reason: reason}
}

// Verify runs the proof checks in order, short-circuiting on the first
// failure. The only side effect is the outbound facilitator call.
func (v *Verifier) Verify(ctx context.Context, headerValue string, requiredAmount *big.Int, resource, payTo string) VerifyResult {
	payload, err := DecodePayload(headerValue)
	if err != nil {
		return reject(ReasonMalformedPayload)
	}

	if payload.X402Version != ProtocolVersion {
		return reject(ReasonUnsupportedVersion)
	}

	if payload.Scheme != SchemeExact {
		return reject(ReasonUnsupportedScheme)
	}

	auth := payload.Payload.Authorization

	amount, ok := new(big.Int).SetString(auth.Amount, 10)
	if !ok {
		return reject(ReasonMalformedPayload)
	}
	if amount.Cmp(requiredAmount) < 0 {
		return reject(ReasonInsufficientAmount)
	}

	if !strings.EqualFold(auth.To, payTo) {
		return reject(ReasonWrongRecipient)
	}

	now := v.now().Unix()
	if now < auth.ValidAfter {
		return reject(ReasonNotYetValid)
	}
	if now > auth.ValidBefore {
		return reject(ReasonExpired)
	}

	settled, err := v.facilitator.Settle(ctx, payload, resource, requiredAmount)
	if err != nil {
		// Never fall back on a cancelled request; the caller is gone and
		// partial acceptance would corrupt state for the retry.
		if ctx.Err() != nil {
			return reject(ReasonFacilitatorUnavailable)
		}
		return v.fallback(payload, amount)
	}

	if !settled.Confirmed {
		return reject(ReasonSettlementFailed)
	}

	return VerifyResult{
		Valid:         true,
		WalletAddress: strings.ToLower(auth.From),
		AmountPaid:    amount,
		SettlementID:  settled.SettlementID,
	}
}

// fallback applies the degraded-trust policy when the facilitator cannot be
// reached. The signature shape check is not cryptographic verification, so
// the default is to reject.
func (v *Verifier) fallback(payload *Payload, amount *big.Int) VerifyResult {
	if !v.allowDegraded {
		return reject(ReasonFacilitatorUnavailable)
	}

	sig := payload.Payload.Signature
	if sig == "" || !strings.HasPrefix(sig, "0x") {
		return reject(ReasonFacilitatorUnavailable)
	}

	return VerifyResult{
		Valid:         true,
		WalletAddress: strings.ToLower(payload.Payload.Authorization.From),
		AmountPaid:    amount,
		Degraded:      true,
	}
}
