package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	attesthandler "attestor/internal/attestation/handler"
	"attestor/internal/attestation/service"
	"attestor/internal/attestation/signer"
	"attestor/internal/audit"
	"attestor/internal/chain"
	"attestor/internal/identity"
	"attestor/internal/indexer"
	indexhandler "attestor/internal/indexer/handler"
	"attestor/internal/platform/config"
	"attestor/internal/platform/database"
	"attestor/internal/platform/health"
	"attestor/internal/platform/kafka/producer"
	"attestor/internal/platform/logger"
	"attestor/internal/platform/metrics"
	redisplatform "attestor/internal/platform/redis"
	"attestor/internal/platform/upstream"
	"attestor/internal/proof/checker"
	"attestor/internal/proof/store"
	"attestor/internal/tracer"
	httptransport "attestor/internal/transport/http"
	"attestor/migrations"
	"attestor/pkg/platform/circuit"
	"attestor/pkg/platform/middleware/metadata"
	"attestor/pkg/platform/middleware/ratelimit"
	"attestor/pkg/platform/middleware/request"
)

const (
	auditBuffer       = 1024
	sweepInterval     = time.Minute
	poolStatsInterval = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("attestor stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("attestor stopped")
}

// infra holds the optional backing services so they can be closed in one place.
type infra struct {
	db       *database.Pool
	redis    *redisplatform.Client
	producer *producer.Producer
}

func (i *infra) close(log *slog.Logger) {
	if i.producer != nil {
		i.producer.Close(5 * time.Second)
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := metrics.NewRegistry()
	tr := tracer.NewOTel()

	domain, err := signer.ParseDomain(cfg.Signer.DomainName, cfg.Signer.DomainVersion, cfg.Signer.ChainID, cfg.Signer.VerifyingContract)
	if err != nil {
		return fmt.Errorf("eip-712 domain: %w", err)
	}
	sig, err := signer.New(cfg.Signer.PrivateKeyHex, domain)
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	if !common.IsHexAddress(cfg.Chain.RevokeContract) {
		return fmt.Errorf("REVOKE_CONTRACT: %q is not an address", cfg.Chain.RevokeContract)
	}
	contract := common.HexToAddress(cfg.Chain.RevokeContract)

	res := &infra{}
	defer res.close(log)

	proofs, err := openProofStore(ctx, cfg, reg, res)
	if err != nil {
		return err
	}
	auditStore, auditReader, err := openAuditStore(cfg, log, res)
	if err != nil {
		return err
	}
	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithPublisherLogger(log),
	)
	defer publisher.Close()

	rpc, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer rpc.Close()
	chainMetrics := chain.NewMetrics(reg)
	chainOpts := []chain.Option{
		chain.WithCallTimeout(cfg.Chain.CallTimeout),
		chain.WithBackoff(upstream.Backoff{MaxAttempts: cfg.Chain.MaxAttempts}),
		chain.WithMetrics(chainMetrics),
	}
	chainClient := chain.NewClient(rpc, log, chainOpts...)

	var maintainer *indexer.Maintainer
	if cfg.Sync.Enabled {
		reader := chainClient
		if cfg.Sync.Subscribe && cfg.Chain.WSURL != "" {
			ws, err := chain.Dial(ctx, cfg.Chain.WSURL)
			if err != nil {
				return err
			}
			defer ws.Close()
			reader = chain.NewClient(ws, log, chainOpts...)
		}
		maintainer = indexer.New(indexer.Config{
			Contract:         contract,
			DeploymentBlock:  cfg.Chain.DeploymentBlock,
			Interval:         cfg.Sync.Interval,
			RecentBlocks:     cfg.Sync.RecentBlocks,
			ChunkSize:        cfg.Sync.ChunkSize,
			CatchUpChunkSize: cfg.Sync.CatchUpChunkSize,
			ChunkDelay:       cfg.Sync.ChunkDelay,
			Subscribe:        cfg.Sync.Subscribe,
		}, reader, proofs, log,
			indexer.WithMetrics(indexer.NewMetrics(reg)),
			indexer.WithTracer(tr),
		)
	}

	checkerOpts := []checker.Option{
		checker.WithMetrics(checker.NewMetrics(reg)),
		checker.WithTracer(tr),
	}
	if maintainer != nil {
		checkerOpts = append(checkerOpts, checker.WithSyncer(maintainer))
	}
	proofChecker := checker.New(checker.Config{
		Contract:        contract,
		DeploymentBlock: cfg.Chain.DeploymentBlock,
		RecentBlocks:    cfg.Sync.RecentBlocks,
		ConfirmReceipts: cfg.Chain.ConfirmReceipts,
	}, proofs, chainClient, log, checkerOpts...)

	resolver := identity.NewResolver(
		identity.NewClient(identity.ClientConfig{
			BaseURL: cfg.Identity.BaseURL,
			APIKey:  cfg.Identity.APIKey,
			Timeout: cfg.Identity.Timeout,
		}),
		log,
		identity.WithBackoff(upstream.Backoff{MaxAttempts: cfg.Identity.MaxAttempts}),
		identity.WithBreaker(circuit.New("identity",
			circuit.WithFailureThreshold(cfg.Identity.BreakerFailures),
			circuit.WithCooldown(cfg.Identity.BreakerCooldown),
		)),
		identity.WithMetrics(identity.NewMetrics(reg)),
		identity.WithTracer(tr),
	)

	instance := cfg.Signer.InstanceID
	if instance == 0 {
		instance = uint64(uuid.New().ID())
	}
	svc := service.New(resolver, proofChecker, sig, publisher,
		service.WithPolicy(cfg.Policy),
		service.WithInstance(instance),
		service.WithMetrics(service.NewMetrics(reg)),
		service.WithTracer(tr),
		service.WithLogger(log),
	)

	healthHandler := health.New(cfg.Server.Environment, svc.Issuer().Hex())
	healthHandler.RegisterCheck("proof_store", proofs.Ping)
	healthHandler.RegisterCheck("chain", chainClient.Ping)
	if res.producer != nil {
		healthHandler.RegisterCheck("kafka", res.producer.Ping)
	}
	if res.db != nil {
		healthHandler.RegisterCheck("database", res.db.Health)
	}
	if res.redis != nil {
		healthHandler.RegisterCheck("redis", res.redis.Health)
	}

	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Server.RateLimitPerMinute,
		Burst:             cfg.Server.RateLimitBurst,
	}, log)

	routes := httptransport.Routes{
		Health:  healthHandler,
		Attest:  attesthandler.New(svc, log),
		Metrics: metrics.Handler(reg),
	}
	if maintainer != nil {
		routes.Admin = indexhandler.New(proofs, maintainer, log, indexhandler.WithAuditReader(auditReader))
	} else {
		log.Info("index maintainer disabled; admin routes not mounted", "profile", cfg.Profile)
	}
	router := httptransport.NewRouter(httptransport.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminToken:     cfg.Server.AdminToken,
		ClientIP:       metadata.Config{TrustedProxies: trusted},
	}, routes, limiter, request.NewMetrics(reg), log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info("attestor starting",
		"addr", cfg.Server.Addr,
		"profile", cfg.Profile,
		"issuer", svc.Issuer().Hex(),
		"chain_id", cfg.Signer.ChainID,
		"instance", instance,
		"sync", cfg.Sync.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(limiter.RunSweeper(gctx, sweepInterval))
	})
	if maintainer != nil {
		g.Go(func() error {
			return ignoreCanceled(maintainer.Start(gctx))
		})
	}
	if res.redis != nil {
		g.Go(func() error {
			return ignoreCanceled(res.redis.RunPoolStats(gctx, poolStatsInterval))
		})
	}
	return g.Wait()
}

// openProofStore picks redis, then postgres, then memory.
func openProofStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, res *infra) (store.Store, error) {
	db, err := database.New(ctx, cfg.Database, reg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		res.db = db
		if err := migrations.Up(ctx, db.DB()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	rc, err := redisplatform.New(ctx, cfg.Redis, redisplatform.NewMetrics(reg))
	if err != nil {
		return nil, err
	}
	switch {
	case rc != nil:
		res.redis = rc
		return store.NewRedis(rc.Client), nil
	case db != nil:
		return store.NewPostgres(db.DB()), nil
	default:
		return store.NewInMemory(), nil
	}
}

// openAuditStore always keeps a bounded in-memory trail for /check and
// tees to postgres and kafka when they are configured.
func openAuditStore(cfg *config.Config, log *slog.Logger, res *infra) (audit.Store, audit.Reader, error) {
	mem := audit.NewInMemoryStore(0)
	sinks := audit.Tee{mem}
	var reader audit.Reader = mem

	if res.db != nil {
		pg := audit.NewPostgresStore(res.db.DB())
		sinks = append(sinks, pg)
		reader = pg
	}
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers: cfg.Kafka.Brokers,
			Acks:    cfg.Kafka.Acks,
			Retries: cfg.Kafka.Retries,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		res.producer = p
		sinks = append(sinks, audit.NewKafkaStore(p, cfg.Kafka.Topic))
	}
	return sinks, reader, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
