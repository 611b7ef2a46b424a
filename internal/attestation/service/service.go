// Package service runs the claim pipeline: identity, proof of revoke,
// eligibility policy, then an EIP-712 signature over a fresh payload.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks IdentityResolver,ProofChecker,Signer,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/attestation/signer"
	"attestor/internal/audit"
	"attestor/internal/identity"
	"attestor/internal/platform/config"
	"attestor/internal/policy"
	"attestor/internal/proof/checker"
	"attestor/internal/proof/models"
	"attestor/internal/tracer"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/platform/middleware/requesttime"
	"attestor/pkg/requestcontext"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, wallet common.Address) (*identity.Record, error)
}

type ProofChecker interface {
	Check(ctx context.Context, key models.Key) (checker.Result, error)
}

type Signer interface {
	Sign(p signer.Payload) (signer.Signature, error)
	Address() common.Address
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	outcomeIssued   = "issued"
	outcomeRejected = "rejected"
)

type Option func(*Service)

// WithPolicy sets the eligibility rules. The zero policy always passes.
func WithPolicy(cfg policy.Config) Option {
	return func(s *Service) { s.policy = cfg }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock replaces the clock. Without it the claim starts at the request
// time pinned by the requesttime middleware, and the signing time is that
// instant plus the time spent in the pipeline.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInstance sets the nonce discriminator. Every process sharing a signing
// key needs a distinct value.
func WithInstance(id uint64) Option {
	return func(s *Service) { s.nonces.instance = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service issues attestations. It holds no per-request state; the nonce
// source is the only shared mutable value.
type Service struct {
	identities IdentityResolver
	proofs     ProofChecker
	signer     Signer
	auditor    AuditPublisher
	policy     policy.Config
	nonces     NonceSource
	metrics    *Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// New panics if a collaborator is missing; wiring happens once at startup.
func New(identities IdentityResolver, proofs ProofChecker, sig Signer, auditor AuditPublisher, opts ...Option) *Service {
	if identities == nil {
		panic("service.New: identity resolver is required")
	}
	if proofs == nil {
		panic("service.New: proof checker is required")
	}
	if sig == nil {
		panic("service.New: signer is required")
	}
	if auditor == nil {
		panic("service.New: audit publisher is required")
	}
	s := &Service{
		identities: identities,
		proofs:     proofs,
		signer:     sig,
		auditor:    auditor,
		tracer:     tracer.NewNoop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issuer is the address every attestation is signed by.
func (s *Service) Issuer() common.Address {
	return s.signer.Address()
}

// claim carries one request through the pipeline.
type claim struct {
	stage   Stage
	wallet  common.Address
	token   common.Address
	spender common.Address
	record  *identity.Record
	tier    string
	nonce   string
}

// Attest runs the claim pipeline for req. Errors carry a domain code that
// the HTTP layer maps to a status.
func (s *Service) Attest(ctx context.Context, req Request) (att *Attestation, err error) {
	began := time.Now()
	start := s.clock(ctx)
	c := &claim{stage: StageReceived}
	ctx, span := s.tracer.Start(ctx, tracer.SpanAttest)
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrStage, string(c.stage)))
		span.End(err)
		s.finish(ctx, req, c, err, start, time.Since(began))
	}()

	if err := s.parse(req, c); err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrWallet, c.wallet.Hex()),
		tracer.String(tracer.AttrToken, c.token.Hex()),
		tracer.String(tracer.AttrSpender, c.spender.Hex()),
	)

	if err := s.checkIdentity(ctx, c); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrFID, int64(c.record.FID)))

	if err := s.checkProof(ctx, c); err != nil {
		return nil, err
	}
	if err := s.checkPolicy(c, start); err != nil {
		return nil, err
	}
	return s.sign(ctx, c, s.issuedAt(start, began))
}

func (s *Service) clock(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requesttime.Now(ctx)
}

// issuedAt is the signing instant. Identity retries and the on-demand sync
// can take seconds, so the deadline is never measured from arrival.
func (s *Service) issuedAt(arrival, began time.Time) time.Time {
	if s.now != nil {
		return s.now()
	}
	return arrival.Add(time.Since(began))
}

func (s *Service) parse(req Request, c *claim) error {
	var err error
	if c.wallet, err = domain.ParseAddress(req.Wallet, "wallet"); err != nil {
		return err
	}
	if c.token, err = domain.ParseAddress(req.Token, "token"); err != nil {
		return err
	}
	if c.spender, err = domain.ParseAddress(req.Spender, "spender"); err != nil {
		return err
	}
	return nil
}

func (s *Service) checkIdentity(ctx context.Context, c *claim) error {
	rec, err := s.identities.Resolve(ctx, c.wallet)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrIdentityNotFound):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "not a verified identity")
	case ctx.Err() != nil:
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request canceled during identity lookup")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unavailable, retry later")
	}
	c.record = rec
	c.stage = StageIdentityChecked
	return nil
}

func (s *Service) checkProof(ctx context.Context, c *claim) error {
	res, err := s.proofs.Check(ctx, models.NewKey(c.wallet, c.token, c.spender))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request canceled during proof check")
	}
	if !res.Found {
		return dErrors.New(dErrors.CodeProofNotFound,
			"no proof of revoke for this token and spender: revoke the allowance first")
	}
	c.tier = res.Tier
	c.stage = StageProofChecked
	return nil
}

func (s *Service) checkPolicy(c *claim, now time.Time) error {
	res := policy.Evaluate(s.policy, *c.record, now)
	if !res.Pass {
		return dErrors.NewWithDetails(dErrors.CodePolicyNotMet, "eligibility policy not met", res.Reasons)
	}
	c.stage = StagePolicyChecked
	return nil
}

func (s *Service) sign(ctx context.Context, c *claim, now time.Time) (*Attestation, error) {
	_, span := s.tracer.Start(ctx, tracer.SpanSign)
	nonce := s.nonces.Next(now)
	deadline := now.Add(config.AttestationTTL).Unix()
	sig, err := s.signer.Sign(signer.Payload{
		Wallet:   c.wallet,
		FID:      c.record.FID,
		Nonce:    nonce,
		Deadline: deadline,
		Token:    c.token,
		Spender:  c.spender,
	})
	span.End(err)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "signing failed")
	}
	c.nonce = nonce.String()
	c.stage = StageSigned
	return &Attestation{
		Signature:  sig.Hex(),
		Nonce:      c.nonce,
		Deadline:   deadline,
		ExternalID: c.record.FID,
		Issuer:     s.signer.Address().Hex(),
	}, nil
}

// finish records the outcome in logs, metrics and the audit trail. Audit
// failures are logged and never change the response.
func (s *Service) finish(ctx context.Context, req Request, c *claim, err error, at time.Time, elapsed time.Duration) {
	outcome, kind := outcomeIssued, ""
	ev := audit.Event{
		Timestamp: at,
		RequestID: requestcontext.RequestID(ctx),
		Outcome:   audit.OutcomeIssued,
		Wallet:    req.Wallet,
		Token:     req.Token,
		Spender:   req.Spender,
		Nonce:     c.nonce,
	}
	if c.stage != StageReceived {
		ev.Wallet, ev.Token, ev.Spender = domain.Lower(c.wallet), domain.Lower(c.token), domain.Lower(c.spender)
	}
	if c.record != nil {
		ev.FID = c.record.FID
	}

	if err != nil {
		outcome, kind = outcomeRejected, string(dErrors.CodeOf(err))
		ev.Outcome, ev.Kind = audit.OutcomeRejected, kind
		var de *dErrors.Error
		if errors.As(err, &de) {
			ev.Reasons = de.Details
		}
		level := slog.LevelInfo
		if kind == string(dErrors.CodeInternal) || kind == string(dErrors.CodeUnavailable) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "attestation rejected",
			"request_id", ev.RequestID,
			"wallet", ev.Wallet,
			"stage", string(c.stage),
			"kind", kind,
			"error", err,
		)
	} else {
		s.logger.InfoContext(ctx, "attestation issued",
			"request_id", ev.RequestID,
			"wallet", ev.Wallet,
			"fid", ev.FID,
			"proof_tier", c.tier,
			"nonce", c.nonce,
		)
	}

	s.metrics.observe(outcome, kind, elapsed.Seconds())
	if aerr := s.auditor.Emit(context.WithoutCancel(ctx), ev); aerr != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "request_id", ev.RequestID, "error", aerr)
	}
}
