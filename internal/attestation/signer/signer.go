// Package signer produces EIP-712 signatures over revocation attestations.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is r ‖ s ‖ v.
const SignatureLength = 65

// Signature is an Ethereum-style signature with v in {27, 28}.
type Signature [SignatureLength]byte

func (s Signature) Hex() string {
	return hexutil.Encode(s[:])
}

// Signer holds the issuer key and a validated domain. Safe for concurrent use.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	domain  Domain
}

// New parses the hex private key ("0x" optional) and checks the domain, so a
// misconfigured deployment fails at startup instead of on-chain.
func New(privateKeyHex string, domain Domain) (*Signer, error) {
	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signing domain: %w", err)
	}
	hexKey := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if hexKey == "" {
		return nil, errors.New("signer private key is not configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// The parse error can echo key material; keep it out of logs.
		return nil, errors.New("signer private key is not a valid secp256k1 hex key")
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		domain:  domain,
	}, nil
}

// Address is the issuer address the verifier contract trusts.
func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) Domain() Domain {
	return s.domain
}

// Digest returns the EIP-712 digest the signature commits to.
func (s *Signer) Digest(p Payload) (common.Hash, error) {
	return s.domain.Digest(p)
}

// Sign signs p under the signer's domain.
func (s *Signer) Sign(p Payload) (Signature, error) {
	var sig Signature
	digest, err := s.domain.Digest(p)
	if err != nil {
		return sig, fmt.Errorf("build digest: %w", err)
	}
	raw, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return sig, fmt.Errorf("sign digest: %w", err)
	}
	if len(raw) != SignatureLength {
		return sig, fmt.Errorf("signature has length %d", len(raw))
	}
	copy(sig[:], raw)
	sig[64] += 27
	return sig, nil
}

// Recover returns the address that signed p under domain. Verifiers compare
// it with the issuer; a signature made under another domain recovers to an
// unrelated address.
func Recover(domain Domain, p Payload, sig Signature) (common.Address, error) {
	digest, err := domain.Digest(p)
	if err != nil {
		return common.Address{}, err
	}
	raw := make([]byte, SignatureLength)
	copy(raw, sig[:])
	if raw[64] != 27 && raw[64] != 28 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", raw[64])
	}
	raw[64] -= 27
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
