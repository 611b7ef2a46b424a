package service

import (
	"math/big"
	"sync/atomic"
	"time"
)

// nonceShift leaves room for 2^20 issuances per millisecond before the
// counter runs ahead of the clock.
const nonceShift = 20

// instanceShift puts the instance discriminator above the 64-bit sequence.
const instanceShift = 64

// NonceSource issues strictly increasing nonces of the form
// instance<<64 | unixMillis<<20 + n. Restarts stay ahead of earlier nonces
// as long as the clock does not move backwards; distinct instances never
// collide because their high bits differ.
type NonceSource struct {
	instance uint64
	last     atomic.Uint64
}

// Next returns a nonce greater than every nonce it returned before.
func (n *NonceSource) Next(now time.Time) *big.Int {
	floor := uint64(now.UnixMilli()) << nonceShift
	for {
		last := n.last.Load()
		next := max(last+1, floor)
		if n.last.CompareAndSwap(last, next) {
			v := new(big.Int).SetUint64(next)
			if n.instance != 0 {
				v.Or(v, new(big.Int).Lsh(new(big.Int).SetUint64(n.instance), instanceShift))
			}
			return v
		}
	}
}
