package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"attestor/internal/platform/config"
)

type Metrics struct {
	PoolHits       prometheus.Counter
	PoolMisses     prometheus.Counter
	PoolTimeouts   prometheus.Counter
	PoolTotalConns prometheus.Gauge
	PoolIdleConns  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PoolHits: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		PoolMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		PoolTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		PoolTotalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "attestor_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		PoolIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "attestor_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
	}
}

// Client wraps the go-redis client with pool metrics.
type Client struct {
	*redis.Client
	metrics   *Metrics
	lastStats *redis.PoolStats
}

// New connects and pings. It returns nil, nil when no URL is set.
func New(ctx context.Context, cfg config.Redis, m *Metrics) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client, metrics: m}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats copies the pool counters into the metrics, as deltas for
// the monotonic ones.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	c.metrics.PoolTotalConns.Set(float64(stats.TotalConns))
	c.metrics.PoolIdleConns.Set(float64(stats.IdleConns))

	var last redis.PoolStats
	if c.lastStats != nil {
		last = *c.lastStats
	}
	if stats.Hits > last.Hits {
		c.metrics.PoolHits.Add(float64(stats.Hits - last.Hits))
	}
	if stats.Misses > last.Misses {
		c.metrics.PoolMisses.Add(float64(stats.Misses - last.Misses))
	}
	if stats.Timeouts > last.Timeouts {
		c.metrics.PoolTimeouts.Add(float64(stats.Timeouts - last.Timeouts))
	}
	c.lastStats = stats
}

// RunPoolStats records pool stats every interval until ctx is canceled.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
