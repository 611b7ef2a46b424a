package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RevokedSignature is the canonical event signature emitted by the revoke contract.
// All three parameters are indexed.
const RevokedSignature = "Revoked(address,address,address)"

// RevokedTopic is topic0 of every Revoked log.
var RevokedTopic = crypto.Keccak256Hash([]byte(RevokedSignature))

// ErrNotRevoked is returned by DecodeRevoked for logs that are not a usable Revoked event.
var ErrNotRevoked = errors.New("log is not a Revoked event")

// RevokedEvent is one decoded Revoked(wallet, token, spender) log.
type RevokedEvent struct {
	Contract    common.Address
	Wallet      common.Address
	Token       common.Address
	Spender     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// DecodeRevoked decodes l. Removed (reorged) logs, logs with the wrong topic
// count or signature, and topics that are not left-padded addresses are rejected.
func DecodeRevoked(l types.Log) (RevokedEvent, error) {
	if l.Removed {
		return RevokedEvent{}, fmt.Errorf("%w: removed by reorg", ErrNotRevoked)
	}
	if len(l.Topics) != 4 {
		return RevokedEvent{}, fmt.Errorf("%w: %d topics", ErrNotRevoked, len(l.Topics))
	}
	if l.Topics[0] != RevokedTopic {
		return RevokedEvent{}, fmt.Errorf("%w: topic0 %s", ErrNotRevoked, l.Topics[0].Hex())
	}

	var addrs [3]common.Address
	for i := range addrs {
		a, err := topicAddress(l.Topics[i+1])
		if err != nil {
			return RevokedEvent{}, fmt.Errorf("%w: topic%d: %w", ErrNotRevoked, i+1, err)
		}
		addrs[i] = a
	}

	return RevokedEvent{
		Contract:    l.Address,
		Wallet:      addrs[0],
		Token:       addrs[1],
		Spender:     addrs[2],
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
	}, nil
}

func topicAddress(h common.Hash) (common.Address, error) {
	for _, b := range h[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, errors.New("not a padded address")
		}
	}
	return common.BytesToAddress(h[common.HashLength-common.AddressLength:]), nil
}

// AddressTopic left-pads an address into a topic value.
func AddressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// RevokedFilter narrows a Revoked log query. Nil participants match any value.
type RevokedFilter struct {
	Contract  common.Address
	FromBlock uint64
	ToBlock   uint64
	Wallet    *common.Address
	Token     *common.Address
	Spender   *common.Address
}

// Query builds the eth_getLogs filter for f.
func (f RevokedFilter) Query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(f.FromBlock),
		ToBlock:   new(big.Int).SetUint64(f.ToBlock),
		Addresses: []common.Address{f.Contract},
		Topics: [][]common.Hash{
			{RevokedTopic},
			optionalTopic(f.Wallet),
			optionalTopic(f.Token),
			optionalTopic(f.Spender),
		},
	}
}

// SubscriptionQuery is the open-ended filter used for log subscriptions.
func SubscriptionQuery(contract common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{RevokedTopic}},
	}
}

func optionalTopic(a *common.Address) []common.Hash {
	if a == nil {
		return nil
	}
	return []common.Hash{AddressTopic(*a)}
}
