// Package domain provides validated primitives shared across modules.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "attestor/pkg/domain-errors"
)

// ParseAddress validates a hex account address at a trust boundary.
// The 0x prefix is required and the zero address is rejected. Checksum casing
// is not enforced; addresses are compared case-insensitively everywhere.
func ParseAddress(s, label string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, label+" must be 0x-prefixed")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, label+" is not a valid address")
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be the zero address")
	}
	return addr, nil
}

// Lower renders an address in its case-normalized form used for keys and logs.
func Lower(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// SameAddress compares two hex strings case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
