package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"attestor/internal/platform/upstream"
	"attestor/pkg/platform/circuit"
)

type scriptedLookup struct {
	mu    sync.Mutex
	steps []func() ([]Record, error)
	calls int
}

func (s *scriptedLookup) Lookup(_ context.Context, _ common.Address) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i]()
}

func found(fids ...uint64) func() ([]Record, error) {
	return func() ([]Record, error) {
		recs := make([]Record, 0, len(fids))
		for _, f := range fids {
			recs = append(recs, Record{FID: f})
		}
		return recs, nil
	}
}

func failWith(cat upstream.ErrorCategory) func() ([]Record, error) {
	return func() ([]Record, error) {
		return nil, upstream.NewError(cat, upstreamName, "scripted", nil)
	}
}

type ResolverSuite struct {
	suite.Suite
	logger  *slog.Logger
	metrics *Metrics
	backoff upstream.Backoff
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.backoff = upstream.Backoff{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3}
}

func (s *ResolverSuite) newResolver(l Lookuper, opts ...ResolverOption) *Resolver {
	base := []ResolverOption{WithBackoff(s.backoff), WithMetrics(s.metrics)}
	return NewResolver(l, s.logger, append(base, opts...)...)
}

func (s *ResolverSuite) TestFoundPicksFirstCandidate() {
	r := s.newResolver(&scriptedLookup{steps: []func() ([]Record, error){found(11, 22)}})

	rec, err := r.Resolve(context.Background(), testWallet)

	s.Require().NoError(err)
	s.Equal(uint64(11), rec.FID)
	s.Equal(testWallet, rec.Wallet)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues(OutcomeFound)))
}

func (s *ResolverSuite) TestNotFoundIsDistinctFromUnavailable() {
	s.Run("empty list", func() {
		r := s.newResolver(&scriptedLookup{steps: []func() ([]Record, error){found()}})
		_, err := r.Resolve(context.Background(), testWallet)
		s.ErrorIs(err, ErrIdentityNotFound)
		s.NotErrorIs(err, ErrResolutionUnavailable)
	})

	s.Run("directory 404", func() {
		l := &scriptedLookup{steps: []func() ([]Record, error){failWith(upstream.ErrorNotFound)}}
		r := s.newResolver(l)
		_, err := r.Resolve(context.Background(), testWallet)
		s.ErrorIs(err, ErrIdentityNotFound)
		s.Equal(1, l.calls, "not found is not retried")
	})

	s.Run("outage after retries", func() {
		l := &scriptedLookup{steps: []func() ([]Record, error){failWith(upstream.ErrorOutage)}}
		r := s.newResolver(l)
		_, err := r.Resolve(context.Background(), testWallet)
		s.ErrorIs(err, ErrResolutionUnavailable)
		s.NotErrorIs(err, ErrIdentityNotFound)
		s.Equal(3, l.calls)
	})

	s.Run("contract mismatch is unavailable without retry", func() {
		l := &scriptedLookup{steps: []func() ([]Record, error){failWith(upstream.ErrorContractMismatch)}}
		r := s.newResolver(l)
		_, err := r.Resolve(context.Background(), testWallet)
		s.ErrorIs(err, ErrResolutionUnavailable)
		s.Equal(1, l.calls)
	})
}

func (s *ResolverSuite) TestRetriesTransientThenSucceeds() {
	l := &scriptedLookup{steps: []func() ([]Record, error){
		failWith(upstream.ErrorTimeout),
		failWith(upstream.ErrorRateLimited),
		found(7),
	}}
	r := s.newResolver(l)

	rec, err := r.Resolve(context.Background(), testWallet)

	s.Require().NoError(err)
	s.Equal(uint64(7), rec.FID)
	s.Equal(3, l.calls)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.RetriesTotal))
}

func (s *ResolverSuite) TestCircuitOpensAndFailsFast() {
	l := &scriptedLookup{steps: []func() ([]Record, error){failWith(upstream.ErrorAuthentication)}}
	breaker := circuit.New("identity_directory", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	r := s.newResolver(l, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), testWallet)
		s.ErrorIs(err, ErrResolutionUnavailable)
	}
	s.Equal(circuit.StateOpen, breaker.State())

	callsBefore := l.calls
	_, err := r.Resolve(context.Background(), testWallet)
	s.ErrorIs(err, ErrResolutionUnavailable)
	s.Equal(callsBefore, l.calls, "open circuit must not reach the directory")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues(OutcomeCircuitOpen)))
}

func (s *ResolverSuite) TestCancelledContextIsUnavailable() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &scriptedLookup{steps: []func() ([]Record, error){func() ([]Record, error) {
		return nil, upstream.NewError(upstream.ErrorTimeout, upstreamName, "ctx", context.Canceled)
	}}}
	r := s.newResolver(l)

	_, err := r.Resolve(ctx, testWallet)
	s.True(errors.Is(err, ErrResolutionUnavailable))
}

func (s *ResolverSuite) TestCallerCancellationLeavesCircuitClosed() {
	l := &scriptedLookup{steps: []func() ([]Record, error){func() ([]Record, error) {
		return nil, upstream.NewError(upstream.ErrorOutage, upstreamName, "request aborted", context.Canceled)
	}}}
	breaker := circuit.New("identity_directory", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	r := s.newResolver(l, WithBreaker(breaker))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Resolve(ctx, testWallet)
		s.ErrorIs(err, ErrResolutionUnavailable)
		s.ErrorIs(err, context.Canceled)
	}
	s.Equal(circuit.StateClosed, breaker.State())
	s.Equal(5.0, testutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues(OutcomeCanceled)))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues(OutcomeUnavailable)))

	l.steps = []func() ([]Record, error){found(7)}
	rec, err := r.Resolve(context.Background(), testWallet)
	s.Require().NoError(err)
	s.Equal(uint64(7), rec.FID)
}
