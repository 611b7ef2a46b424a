package policy

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"attestor/internal/identity"
)

var (
	now    = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	wallet = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
)

func record(ageDays, followers, following, posts int) identity.Record {
	return identity.Record{
		FID:       1,
		Wallet:    wallet,
		CreatedAt: now.Add(-time.Duration(ageDays) * 24 * time.Hour),
		Followers: followers,
		Following: following,
		Posts:     posts,
	}
}

func TestZeroConfigAlwaysPasses(t *testing.T) {
	res := Evaluate(Config{}, identity.Record{}, now)
	assert.True(t, res.Pass)
	assert.Empty(t, res.Reasons)
}

func TestModeAll(t *testing.T) {
	cfg := Config{MinAccountAgeDays: 30, MinFollowers: 10, MinPosts: 5}

	tests := []struct {
		name    string
		rec     identity.Record
		pass    bool
		reasons []string
	}{
		{"all rules met", record(45, 10, 0, 5), true, nil},
		{"young account", record(3, 50, 0, 50), false, []string{"account age 3 days below minimum 30"}},
		{"thin social graph", record(90, 2, 0, 1), false, []string{"followers 2 below minimum 10", "posts 1 below minimum 5"}},
		{"unknown age fails age rule", identity.Record{Wallet: wallet, Followers: 10, Posts: 5}, false, []string{"account age unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(cfg, tt.rec, now)
			assert.Equal(t, tt.pass, res.Pass)
			assert.Equal(t, tt.reasons, res.Reasons)
		})
	}
}

func TestModeAny(t *testing.T) {
	cfg := Config{MinAccountAgeDays: 30, MinFollowers: 10, MinPosts: 5, Mode: ModeAny}

	t.Run("age group alone passes", func(t *testing.T) {
		res := Evaluate(cfg, record(45, 0, 0, 0), now)
		assert.True(t, res.Pass)
		assert.Len(t, res.Reasons, 2, "failed social rules still reported")
	})

	t.Run("social group alone passes", func(t *testing.T) {
		res := Evaluate(cfg, record(1, 10, 0, 5), now)
		assert.True(t, res.Pass)
	})

	t.Run("both groups fail", func(t *testing.T) {
		res := Evaluate(cfg, record(1, 9, 0, 5), now)
		assert.False(t, res.Pass)
		assert.Equal(t, []string{"account age 1 days below minimum 30", "followers 9 below minimum 10"}, res.Reasons)
	})

	t.Run("unconfigured group cannot pass vacuously", func(t *testing.T) {
		res := Evaluate(Config{MinFollowers: 10, Mode: ModeAny}, record(1000, 3, 0, 0), now)
		assert.False(t, res.Pass)
	})
}

func TestVerifiedAddressBonus(t *testing.T) {
	cfg := Config{MinFollowers: 9, MinPosts: 4, VerifiedAddressBonus: true}
	rec := record(0, 5, 0, 2)

	t.Run("wallet not verified keeps full thresholds", func(t *testing.T) {
		res := Evaluate(cfg, rec, now)
		assert.False(t, res.Pass)
	})

	t.Run("verified wallet halves thresholds rounding up", func(t *testing.T) {
		verified := rec
		verified.VerifiedAddresses = []common.Address{wallet}
		res := Evaluate(cfg, verified, now)
		assert.True(t, res.Pass, "5 >= ceil(9/2) and 2 >= ceil(4/2)")

		verified.Followers = 4
		res = Evaluate(cfg, verified, now)
		assert.False(t, res.Pass)
		assert.Equal(t, []string{"followers 4 below minimum 5"}, res.Reasons)
	})
}

func TestAntiFarmingPreset(t *testing.T) {
	cfg := AntiFarming()
	assert.False(t, cfg.IsNoop())
	assert.Equal(t, ModeAny, cfg.Mode)

	assert.True(t, Evaluate(cfg, record(31, 0, 0, 0), now).Pass)
	assert.False(t, Evaluate(cfg, record(2, 1, 0, 0), now).Pass)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := AntiFarming()
	rec := record(10, 3, 1, 2)
	first := Evaluate(cfg, rec, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(cfg, rec, now))
	}
}
