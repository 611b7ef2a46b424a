package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attestor/internal/policy"
)

// Profile names select a preset bundle of proof and policy behaviour.
const (
	ProfileStrict      = "strict"
	ProfileAntiFarming = "anti-farming"
	ProfileLiveOnly    = "live-only"
)

// AttestationTTL is the fixed validity window of a signed attestation.
const AttestationTTL = 600 * time.Second

// Config is the full process configuration, grouped by concern.
type Config struct {
	Profile  string
	Server   Server
	Signer   Signer
	Identity Identity
	Chain    Chain
	Sync     Sync
	Policy   policy.Config
	Redis    Redis
	Database Database
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	Environment        string
	LogLevel           string
	AdminToken         string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	ShutdownTimeout    time.Duration
	TrustedProxies     string
}

// Signer holds the signing key and the EIP-712 domain of the on-chain verifier.
type Signer struct {
	PrivateKeyHex     string
	DomainName        string
	DomainVersion     string
	ChainID           int64
	VerifyingContract string
	// InstanceID separates nonces of processes sharing the key. Zero means
	// pick a random one at startup.
	InstanceID uint64
}

// Identity configures the identity directory client.
type Identity struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxAttempts     int
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Chain configures the JSON-RPC read layer.
type Chain struct {
	RPCURL          string
	WSURL           string
	RevokeContract  string
	DeploymentBlock uint64
	CallTimeout     time.Duration
	MaxAttempts     int
	ConfirmReceipts bool
}

// Sync configures the background index maintainer.
type Sync struct {
	Enabled          bool
	Interval         time.Duration
	RecentBlocks     uint64
	ChunkSize        uint64
	CatchUpChunkSize uint64
	ChunkDelay       time.Duration
	Subscribe        bool
}

// Redis selects the redis proof store when URL is set.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Database selects the postgres proof store when URL is set.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
}

// Kafka enables the audit sink when Brokers is set.
type Kafka struct {
	Brokers string
	Topic   string
	Acks    string
	Retries int
}

// FromEnv builds the configuration from environment variables so main stays lean.
// Parse failures are collected and returned together.
func FromEnv() (*Config, error) {
	e := &envReader{}

	cfg := &Config{
		Profile: e.str("ATTESTOR_PROFILE", ProfileStrict),
		Server: Server{
			Addr:               e.str("ATTESTOR_ADDR", ":8080"),
			Environment:        e.str("ENVIRONMENT", "development"),
			LogLevel:           e.str("LOG_LEVEL", "info"),
			AdminToken:         e.str("ADMIN_TOKEN", ""),
			RequestTimeout:     e.duration("REQUEST_TIMEOUT", 60*time.Second),
			RateLimitPerMinute: e.integer("RATE_LIMIT_PER_MINUTE", 30),
			RateLimitBurst:     e.integer("RATE_LIMIT_BURST", 10),
			ShutdownTimeout:    e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustedProxies:     e.str("TRUSTED_PROXIES", ""),
		},
		Signer: Signer{
			PrivateKeyHex:     e.str("SIGNER_PRIVATE_KEY", ""),
			DomainName:        e.str("EIP712_NAME", "RevokeRewards"),
			DomainVersion:     e.str("EIP712_VERSION", "1"),
			ChainID:           int64(e.integer("CHAIN_ID", 8453)),
			VerifyingContract: e.str("VERIFYING_CONTRACT", ""),
			InstanceID:        e.uint("ATTESTOR_INSTANCE_ID", 0),
		},
		Identity: Identity{
			BaseURL:         e.str("IDENTITY_BASE_URL", "https://api.neynar.com"),
			APIKey:          e.str("IDENTITY_API_KEY", ""),
			Timeout:         e.duration("IDENTITY_TIMEOUT", 15*time.Second),
			MaxAttempts:     e.integer("IDENTITY_MAX_ATTEMPTS", 3),
			BreakerFailures: e.integer("IDENTITY_BREAKER_FAILURES", 5),
			BreakerCooldown: e.duration("IDENTITY_BREAKER_COOLDOWN", 30*time.Second),
		},
		Chain: Chain{
			RPCURL:          e.str("RPC_URL", ""),
			WSURL:           e.str("RPC_WS_URL", ""),
			RevokeContract:  e.str("REVOKE_CONTRACT", ""),
			DeploymentBlock: e.uint("DEPLOYMENT_BLOCK", 0),
			CallTimeout:     e.duration("CHAIN_CALL_TIMEOUT", 15*time.Second),
			MaxAttempts:     e.integer("CHAIN_MAX_ATTEMPTS", 3),
			ConfirmReceipts: e.boolean("CHAIN_CONFIRM_RECEIPTS", false),
		},
		Sync: Sync{
			Enabled:          e.boolean("SYNC_ENABLED", true),
			Interval:         e.duration("SYNC_INTERVAL", 5*time.Minute),
			RecentBlocks:     e.uint("SYNC_RECENT_BLOCKS", 200),
			ChunkSize:        e.uint("SYNC_CHUNK_SIZE", 10),
			CatchUpChunkSize: e.uint("SYNC_CATCHUP_CHUNK_SIZE", 500),
			ChunkDelay:       e.duration("SYNC_CHUNK_DELAY", 250*time.Millisecond),
			Subscribe:        e.boolean("SYNC_SUBSCRIBE", false),
		},
		Redis: Redis{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: Database{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.integer("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectAttempts: e.integer("DATABASE_CONNECT_ATTEMPTS", 5),
		},
		Kafka: Kafka{
			Brokers: e.str("KAFKA_BROKERS", ""),
			Topic:   e.str("KAFKA_AUDIT_TOPIC", "attestor.audit"),
			Acks:    e.str("KAFKA_ACKS", "all"),
			Retries: e.integer("KAFKA_RETRIES", 3),
		},
	}

	if err := cfg.applyProfile(); err != nil {
		e.errs = append(e.errs, err)
	}
	cfg.applyPolicyOverrides(e)
	if err := cfg.checkBudgets(); err != nil {
		e.errs = append(e.errs, err)
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfile resets the policy and sync switches to the named preset.
// Every profile keeps the event-match proof; they differ in thresholds and
// in whether the local index is maintained.
func (c *Config) applyProfile() error {
	switch c.Profile {
	case ProfileStrict:
		c.Policy = policy.Config{}
	case ProfileAntiFarming:
		c.Policy = policy.AntiFarming()
	case ProfileLiveOnly:
		c.Policy = policy.Config{}
		c.Sync.Enabled = false
		c.Sync.Subscribe = false
	default:
		return fmt.Errorf("ATTESTOR_PROFILE: unknown profile %q (want %s, %s or %s)",
			c.Profile, ProfileStrict, ProfileAntiFarming, ProfileLiveOnly)
	}
	return nil
}

// checkBudgets rejects a request timeout that would cut the identity retry
// budget short: every attempt must be able to run to its own timeout.
func (c *Config) checkBudgets() error {
	identity := time.Duration(max(c.Identity.MaxAttempts, 1)) * c.Identity.Timeout
	if c.Server.RequestTimeout <= identity {
		return fmt.Errorf("REQUEST_TIMEOUT: %s does not cover %d identity attempts of %s",
			c.Server.RequestTimeout, max(c.Identity.MaxAttempts, 1), c.Identity.Timeout)
	}
	return nil
}

// applyPolicyOverrides lets individual POLICY_* variables tune the preset.
func (c *Config) applyPolicyOverrides(e *envReader) {
	c.Policy.MinAccountAgeDays = e.integer("POLICY_MIN_ACCOUNT_AGE_DAYS", c.Policy.MinAccountAgeDays)
	c.Policy.MinFollowers = e.integer("POLICY_MIN_FOLLOWERS", c.Policy.MinFollowers)
	c.Policy.MinFollowing = e.integer("POLICY_MIN_FOLLOWING", c.Policy.MinFollowing)
	c.Policy.MinPosts = e.integer("POLICY_MIN_POSTS", c.Policy.MinPosts)
	c.Policy.VerifiedAddressBonus = e.boolean("POLICY_VERIFIED_ADDRESS_BONUS", c.Policy.VerifiedAddressBonus)
	mode := e.str("POLICY_MODE", string(c.Policy.Mode))
	switch policy.Mode(mode) {
	case "", policy.ModeAll, policy.ModeAny:
		c.Policy.Mode = policy.Mode(mode)
	default:
		e.errs = append(e.errs, fmt.Errorf("POLICY_MODE: want %q or %q, got %q", policy.ModeAll, policy.ModeAny, mode))
	}
}

type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *envReader) uint(key string, def uint64) uint64 {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *envReader) boolean(key string, def bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}
