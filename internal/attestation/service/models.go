package service

import (
	"strings"

	"attestor/pkg/validation"
)

// Request is a claim for an attestation.
type Request struct {
	Wallet  string `json:"wallet" validate:"required,eth_addr"`
	Token   string `json:"token" validate:"required,eth_addr"`
	Spender string `json:"spender" validate:"required,eth_addr"`
}

func (r *Request) Normalize() {
	r.Wallet = strings.TrimSpace(r.Wallet)
	r.Token = strings.TrimSpace(r.Token)
	r.Spender = strings.TrimSpace(r.Spender)
}

func (r *Request) Validate() error {
	return validation.Validate(r)
}

// Attestation is the signed response. Nonce is a decimal uint256.
type Attestation struct {
	Signature  string `json:"signature"`
	Nonce      string `json:"nonce"`
	Deadline   int64  `json:"deadline"`
	ExternalID uint64 `json:"externalId"`
	Issuer     string `json:"issuer"`
}

// Stage names the pipeline step a claim reached. Each runs at most once.
type Stage string

const (
	StageReceived        Stage = "received"
	StageIdentityChecked Stage = "identity_checked"
	StageProofChecked    Stage = "proof_checked"
	StagePolicyChecked   Stage = "policy_checked"
	StageSigned          Stage = "signed"
)
