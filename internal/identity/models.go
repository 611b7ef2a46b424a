package identity

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrIdentityNotFound means the directory has no identity for the wallet.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrResolutionUnavailable means the directory could not be consulted.
	// It is never conflated with ErrIdentityNotFound.
	ErrResolutionUnavailable = errors.New("identity resolution unavailable")
)

// Record is an immutable snapshot of a directory identity taken at lookup time.
type Record struct {
	FID      uint64
	Username string
	// Wallet is the address the lookup was made for.
	Wallet         common.Address
	PrimaryAddress common.Address
	// CreatedAt is zero when the directory does not report it.
	CreatedAt         time.Time
	Followers         int
	Following         int
	Posts             int
	VerifiedAddresses []common.Address
}

// HasVerified reports whether addr is among the identity's verified addresses.
func (r Record) HasVerified(addr common.Address) bool {
	for _, v := range r.VerifiedAddresses {
		if v == addr {
			return true
		}
	}
	return false
}

// AccountAge returns the age at now, and false when CreatedAt is unknown.
func (r Record) AccountAge(now time.Time) (time.Duration, bool) {
	if r.CreatedAt.IsZero() {
		return 0, false
	}
	if now.Before(r.CreatedAt) {
		return 0, true
	}
	return now.Sub(r.CreatedAt), true
}
