// Package payment implements x402 payment proof verification and the
// "payment required" wire protocol for priced endpoints.
package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is the single supported x402 protocol version.
	ProtocolVersion = 2

	// SchemeExact is the only supported payment scheme: the payload
	// authorizes a transfer of exactly the stated amount.
	SchemeExact = "exact"
)

// Payload is the decoded X-PAYMENT header. Untrusted client input; never
// persisted.
type Payload struct {
	X402Version int          `json:"x402Version"`
	Scheme      string       `json:"scheme"`
	Network     string       `json:"network"`
	Payload     ExactPayload `json:"payload"`
}

type ExactPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Authorization mirrors an EIP-3009 transfer authorization. Amount is kept
// as a string so comparisons happen in arbitrary precision, never floats.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
}

// DecodePayload parses a base64-encoded JSON payment header.
func DecodePayload(headerValue string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment header: %w", err)
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %w", err)
	}

	return &payload, nil
}

// Encode returns the base64 transport form of the payload. Used by tests and
// client tooling.
func (p *Payload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
