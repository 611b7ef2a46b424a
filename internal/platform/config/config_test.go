package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestor/internal/policy"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ProfileStrict, cfg.Profile)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(8453), cfg.Signer.ChainID)
	assert.Equal(t, 15*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, 3, cfg.Chain.MaxAttempts)
	assert.Equal(t, uint64(200), cfg.Sync.RecentBlocks)
	assert.Equal(t, uint64(10), cfg.Sync.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.ChunkDelay)
	assert.True(t, cfg.Sync.Enabled)
	assert.True(t, cfg.Policy.IsNoop())
	assert.Greater(t, cfg.Server.RequestTimeout, time.Duration(cfg.Identity.MaxAttempts)*cfg.Identity.Timeout)
}

func TestFromEnvRejectsRequestTimeoutBelowIdentityBudget(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "30s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")

	t.Setenv("IDENTITY_TIMEOUT", "5s")
	_, err = FromEnv()
	require.NoError(t, err)
}

func TestFromEnvProfiles(t *testing.T) {
	t.Run("anti-farming loads thresholds", func(t *testing.T) {
		t.Setenv("ATTESTOR_PROFILE", ProfileAntiFarming)
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, policy.AntiFarming(), cfg.Policy)
	})

	t.Run("live-only disables maintainer", func(t *testing.T) {
		t.Setenv("ATTESTOR_PROFILE", ProfileLiveOnly)
		t.Setenv("SYNC_SUBSCRIBE", "true")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.False(t, cfg.Sync.Enabled)
		assert.False(t, cfg.Sync.Subscribe)
	})

	t.Run("policy overrides tune preset", func(t *testing.T) {
		t.Setenv("ATTESTOR_PROFILE", ProfileAntiFarming)
		t.Setenv("POLICY_MIN_FOLLOWERS", "50")
		t.Setenv("POLICY_MODE", "all")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Policy.MinFollowers)
		assert.Equal(t, policy.ModeAll, cfg.Policy.Mode)
	})

	t.Run("unknown profile rejected", func(t *testing.T) {
		t.Setenv("ATTESTOR_PROFILE", "open")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown profile")
	})
}

func TestFromEnvCollectsParseErrors(t *testing.T) {
	t.Setenv("CHAIN_ID", "base")
	t.Setenv("SYNC_INTERVAL", "often")
	t.Setenv("POLICY_MODE", "some")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAIN_ID")
	assert.Contains(t, err.Error(), "SYNC_INTERVAL")
	assert.Contains(t, err.Error(), "POLICY_MODE")
}
