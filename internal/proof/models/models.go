// Package models holds the revoke-proof records shared by the index
// maintainer, the proof checker and the stores.
package models

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/chain"
)

// Key identifies a proof. Addresses are byte values, so two keys built from
// differently cased hex strings compare equal.
type Key struct {
	Wallet  common.Address
	Token   common.Address
	Spender common.Address
}

func NewKey(wallet, token, spender common.Address) Key {
	return Key{Wallet: wallet, Token: token, Spender: spender}
}

// String is the lower-cased "wallet:token:spender" form used as a storage key.
func (k Key) String() string {
	return strings.ToLower(k.Wallet.Hex() + ":" + k.Token.Hex() + ":" + k.Spender.Hex())
}

// Record is an observed Revoked event. Once stored it is never removed.
type Record struct {
	Wallet      common.Address
	Token       common.Address
	Spender     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	ObservedAt  time.Time
}

func (r Record) Key() Key {
	return NewKey(r.Wallet, r.Token, r.Spender)
}

// FromEvent converts a decoded log into a Record observed at now.
func FromEvent(ev chain.RevokedEvent, now time.Time) Record {
	return Record{
		Wallet:      ev.Wallet,
		Token:       ev.Token,
		Spender:     ev.Spender,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
		ObservedAt:  now.UTC(),
	}
}

// Cursor is the highest block whose logs are fully indexed.
type Cursor struct {
	LastSyncedBlock uint64
	UpdatedAt       time.Time
}
