package signer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PrimaryType is the EIP-712 struct name the verifier contract hashes.
const PrimaryType = "Attestation"

// attestationTypes must match the verifier's type string exactly:
// Attestation(address wallet,uint256 fid,uint256 nonce,uint256 deadline,address token,address spender)
var attestationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "wallet", Type: "address"},
		{Name: "fid", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
		{Name: "token", Type: "address"},
		{Name: "spender", Type: "address"},
	},
}

// Domain binds signatures to one verifier contract on one chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

// ParseDomain builds a Domain from configuration strings and validates it.
func ParseDomain(name, version string, chainID int64, verifyingContract string) (Domain, error) {
	v := strings.TrimSpace(verifyingContract)
	if !common.IsHexAddress(v) {
		return Domain{}, fmt.Errorf("verifying contract %q is not an address", verifyingContract)
	}
	d := Domain{
		Name:              strings.TrimSpace(name),
		Version:           strings.TrimSpace(version),
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(v),
	}
	return d, d.Validate()
}

// Validate rejects domains that would produce signatures no verifier accepts.
func (d Domain) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("domain name is empty"))
	}
	if d.Version == "" {
		errs = append(errs, errors.New("domain version is empty"))
	}
	if d.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("chain id must be positive, got %d", d.ChainID))
	}
	if d.VerifyingContract == (common.Address{}) {
		errs = append(errs, errors.New("verifying contract is the zero address"))
	}
	return errors.Join(errs...)
}

// Payload is the attested statement. It is built per request and never stored.
type Payload struct {
	Wallet   common.Address
	FID      uint64
	Nonce    *big.Int
	Deadline int64
	Token    common.Address
	Spender  common.Address
}

func (p Payload) validate() error {
	if p.Nonce == nil || p.Nonce.Sign() < 0 {
		return errors.New("nonce must be a non-negative integer")
	}
	if p.Deadline <= 0 {
		return errors.New("deadline must be positive")
	}
	return nil
}

// TypedData returns the full EIP-712 document for p under d, in the shape
// wallets and eth_signTypedData_v4 accept.
func (d Domain) TypedData(p Payload) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       attestationTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           math.NewHexOrDecimal256(d.ChainID),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			// Addresses go in as hex strings; the encoder does not accept common.Address.
			"wallet":   p.Wallet.Hex(),
			"fid":      new(big.Int).SetUint64(p.FID),
			"nonce":    new(big.Int).Set(p.Nonce),
			"deadline": big.NewInt(p.Deadline),
			"token":    p.Token.Hex(),
			"spender":  p.Spender.Hex(),
		},
	}
}

// Separator returns the EIP-712 domain separator.
func (d Domain) Separator() (common.Hash, error) {
	td := d.TypedData(Payload{Nonce: new(big.Int), Deadline: 1})
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	return common.BytesToHash(sep), nil
}

// Digest returns keccak256(0x19 0x01 ‖ domainSeparator ‖ hashStruct(p)).
func (d Domain) Digest(p Payload) (common.Hash, error) {
	if err := p.validate(); err != nil {
		return common.Hash{}, err
	}
	td := d.TypedData(p)
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	msg, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash message: %w", err)
	}

	raw := make([]byte, 0, 2+len(sep)+len(msg))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, sep...)
	raw = append(raw, msg...)
	return crypto.Keccak256Hash(raw), nil
}
