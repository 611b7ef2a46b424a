package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"attestor/internal/chain"
	"attestor/internal/platform/upstream"
	"attestor/internal/proof/models"
	"attestor/internal/proof/store"
)

var (
	revokeContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wallet         = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	token          = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	spender        = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

func revokedAt(block uint64, tok common.Address) chain.RevokedEvent {
	return chain.RevokedEvent{
		Contract:    revokeContract,
		Wallet:      wallet,
		Token:       tok,
		Spender:     spender,
		BlockNumber: block,
		TxHash:      common.BigToHash(common.Big2),
	}
}

type fakeSub struct {
	errc chan error
	once sync.Once
}

func newFakeSub() *fakeSub { return &fakeSub{errc: make(chan error, 1)} }

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.errc) }) }
func (s *fakeSub) Err() <-chan error { return s.errc }

type fakeChain struct {
	mu        sync.Mutex
	head      uint64
	events    []chain.RevokedEvent
	failBlock uint64 // ranges containing this block fail while failCount > 0
	failCount int
	queried   [][2]uint64
	headCalls int

	// gate, when set, blocks RevokedLogs until closed; entered is signaled first.
	gate    chan struct{}
	entered chan struct{}

	subErr   error
	subCalls int
	subs     []*fakeSub
	subLogs  chan<- types.Log
}

func (f *fakeChain) Head(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	return f.head, nil
}

func (f *fakeChain) RevokedLogs(ctx context.Context, q chain.RevokedFilter) ([]chain.RevokedEvent, error) {
	if f.gate != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, [2]uint64{q.FromBlock, q.ToBlock})
	if f.failCount > 0 && q.FromBlock <= f.failBlock && f.failBlock <= q.ToBlock {
		f.failCount--
		return nil, upstream.NewError(upstream.ErrorOutage, "json-rpc", "502", nil)
	}
	var out []chain.RevokedEvent
	for _, ev := range f.events {
		if ev.BlockNumber >= q.FromBlock && ev.BlockNumber <= q.ToBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeChain) SubscribeRevoked(_ context.Context, _ common.Address, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	f.subLogs = ch
	return sub, nil
}

func (f *fakeChain) ranges() [][2]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint64(nil), f.queried...)
}

type MaintainerSuite struct {
	suite.Suite
	chain   *fakeChain
	store   *store.InMemoryStore
	metrics *Metrics
	cfg     Config
}

func TestMaintainerSuite(t *testing.T) {
	suite.Run(t, new(MaintainerSuite))
}

func (s *MaintainerSuite) SetupTest() {
	s.chain = &fakeChain{head: 1000}
	s.store = store.NewInMemory()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.cfg = Config{
		Contract:         revokeContract,
		DeploymentBlock:  900,
		RecentBlocks:     50,
		ChunkSize:        10,
		CatchUpChunkSize: 25,
		ResubscribeMin:   time.Millisecond,
		ResubscribeMax:   5 * time.Millisecond,
	}
}

func (s *MaintainerSuite) newMaintainer() *Maintainer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s.cfg, s.chain, s.store, logger, WithMetrics(s.metrics))
}

func (s *MaintainerSuite) cursor() uint64 {
	c, err := s.store.LoadCursor(context.Background())
	s.Require().NoError(err)
	return c.LastSyncedBlock
}

func (s *MaintainerSuite) hasProof(tok common.Address) bool {
	_, err := s.store.Find(context.Background(), models.NewKey(wallet, tok, spender))
	return err == nil
}

func (s *MaintainerSuite) TestStartupCatchesUpFromDeploymentBlock() {
	s.chain.events = []chain.RevokedEvent{revokedAt(905, token), revokedAt(990, common.HexToAddress("0x02"))}

	res, err := s.newMaintainer().Startup(context.Background())

	s.Require().NoError(err)
	s.Equal(uint64(900), res.FromBlock)
	s.Equal(uint64(1000), res.ToBlock)
	s.Equal(5, res.Chunks, "101 blocks in chunks of 25")
	s.Equal(2, res.Inserted)
	s.Equal(uint64(1000), s.cursor())
	s.True(s.hasProof(token))
	s.Equal([2]uint64{900, 924}, s.chain.ranges()[0])
	s.Equal([2]uint64{1000, 1000}, s.chain.ranges()[4])
	s.Equal(1000.0, testutil.ToFloat64(s.metrics.CursorBlock))
}

func (s *MaintainerSuite) TestCatchUpResumesAfterCursor() {
	_, err := s.store.AdvanceCursor(context.Background(), 980)
	s.Require().NoError(err)

	res, err := s.newMaintainer().CatchUp(context.Background(), ReasonPeriodic)

	s.Require().NoError(err)
	s.Equal(uint64(981), res.FromBlock)
	s.Equal([][2]uint64{{981, 1000}}, s.chain.ranges())
}

func (s *MaintainerSuite) TestCatchUpNothingToDo() {
	_, err := s.store.AdvanceCursor(context.Background(), 1000)
	s.Require().NoError(err)

	res, err := s.newMaintainer().CatchUp(context.Background(), ReasonPeriodic)

	s.Require().NoError(err)
	s.Zero(res.Chunks)
	s.Empty(s.chain.ranges())
}

func (s *MaintainerSuite) TestFailedChunkFreezesCursor() {
	s.chain.events = []chain.RevokedEvent{revokedAt(905, token), revokedAt(960, common.HexToAddress("0x02"))}
	s.chain.failBlock = 955
	s.chain.failCount = 1
	m := s.newMaintainer()

	_, err := m.CatchUp(context.Background(), ReasonStartup)

	s.Require().Error(err)
	s.Equal(uint64(949), s.cursor(), "cursor stays at the last completed chunk")
	s.True(s.hasProof(token))
	s.False(s.hasProof(common.HexToAddress("0x02")))
	state, err := m.State(context.Background())
	s.Require().NoError(err)
	s.NotEmpty(state.LastError)

	// The next pass resumes at the failed chunk.
	res, err := m.CatchUp(context.Background(), ReasonPeriodic)
	s.Require().NoError(err)
	s.Equal(uint64(950), res.FromBlock)
	s.Equal(uint64(1000), s.cursor())
	s.True(s.hasProof(common.HexToAddress("0x02")))
}

func (s *MaintainerSuite) TestSyncRecentNeverRegressesCursor() {
	_, err := s.store.AdvanceCursor(context.Background(), 990)
	s.Require().NoError(err)
	s.chain.events = []chain.RevokedEvent{revokedAt(960, token)}

	res, err := s.newMaintainer().SyncRecent(context.Background(), 0)

	s.Require().NoError(err)
	s.Equal(uint64(951), res.FromBlock)
	s.Equal(5, res.Chunks, "50 blocks in chunks of 10")
	s.Equal(uint64(1000), s.cursor())
	s.True(s.hasProof(token))
}

func (s *MaintainerSuite) TestSyncRecentLeavesGapUncovered() {
	_, err := s.store.AdvanceCursor(context.Background(), 910)
	s.Require().NoError(err)

	_, err = s.newMaintainer().SyncRecent(context.Background(), 20)

	s.Require().NoError(err)
	s.Equal(uint64(910), s.cursor(), "blocks 911-980 are not indexed yet")
}

func (s *MaintainerSuite) TestSyncRecentClampsToDeploymentBlock() {
	s.chain.head = 905

	res, err := s.newMaintainer().SyncRecent(context.Background(), 200)

	s.Require().NoError(err)
	s.Equal(uint64(900), res.FromBlock)
	s.Equal(uint64(905), s.cursor())
}

func (s *MaintainerSuite) TestSyncRecentDoesNotWaitForRunningPass() {
	s.chain.gate = make(chan struct{})
	s.chain.entered = make(chan struct{}, 1)
	m := s.newMaintainer()

	done := make(chan error, 1)
	go func() {
		_, err := m.CatchUp(context.Background(), ReasonPeriodic)
		done <- err
	}()
	<-s.chain.entered
	s.True(m.Syncing())

	start := time.Now()
	_, err := m.SyncRecent(context.Background(), 0)
	s.ErrorIs(err, ErrSyncInFlight)
	s.Less(time.Since(start), 100*time.Millisecond)

	state, err := m.State(context.Background())
	s.Require().NoError(err)
	s.True(state.Syncing)

	close(s.chain.gate)
	s.NoError(<-done)
	s.False(m.Syncing())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.InFlightSkipped.WithLabelValues(ReasonOnDemand)))
}

func (s *MaintainerSuite) TestConcurrentCatchUpsCoalesce() {
	s.chain.gate = make(chan struct{})
	s.chain.entered = make(chan struct{}, 1)
	m := s.newMaintainer()

	results := make(chan *Result, 5)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := m.CatchUp(context.Background(), ReasonPeriodic)
		s.NoError(err)
		results <- res
	}()
	<-s.chain.entered

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.CatchUp(context.Background(), ReasonAdmin)
			s.NoError(err)
			results <- res
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(s.chain.gate)
	wg.Wait()
	close(results)

	var first *Result
	for res := range results {
		if first == nil {
			first = res
		}
		s.Same(first, res, "all callers share one pass")
	}
	s.Equal(1, s.chain.headCalls)
}

func (s *MaintainerSuite) TestTriggerCatchUpReportsInFlight() {
	s.chain.gate = make(chan struct{})
	s.chain.entered = make(chan struct{}, 1)
	m := s.newMaintainer()

	s.True(m.TriggerCatchUp(ReasonAdmin))
	<-s.chain.entered
	s.False(m.TriggerCatchUp(ReasonAdmin))
	close(s.chain.gate)

	s.Eventually(func() bool { return !m.Syncing() && s.cursor() == 1000 }, time.Second, 5*time.Millisecond)
}

func (s *MaintainerSuite) TestRunPeriodicFollowsHead() {
	s.cfg.Interval = 5 * time.Millisecond
	m := s.newMaintainer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.RunPeriodic(ctx) }()

	s.Eventually(func() bool { return s.cursor() == 1000 }, time.Second, 5*time.Millisecond)
	s.chain.mu.Lock()
	s.chain.head = 1010
	s.chain.mu.Unlock()
	s.Eventually(func() bool { return s.cursor() == 1010 }, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *MaintainerSuite) TestSubscribeStoresLogsAndResubscribes() {
	s.cfg.Subscribe = true
	_, err := s.store.AdvanceCursor(context.Background(), 1000)
	s.Require().NoError(err)
	m := s.newMaintainer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Subscribe(ctx) }()

	s.Eventually(func() bool {
		s.chain.mu.Lock()
		defer s.chain.mu.Unlock()
		return s.chain.subCalls == 1
	}, time.Second, time.Millisecond)

	s.chain.mu.Lock()
	logs := s.chain.subLogs
	first := s.chain.subs[0]
	s.chain.mu.Unlock()

	logs <- types.Log{
		Address:     revokeContract,
		Topics:      []common.Hash{chain.RevokedTopic, chain.AddressTopic(wallet), chain.AddressTopic(token), chain.AddressTopic(spender)},
		BlockNumber: 1001,
	}
	logs <- types.Log{
		Address: common.HexToAddress("0x9999999999999999999999999999999999999999"),
		Topics:  []common.Hash{chain.RevokedTopic, chain.AddressTopic(wallet), chain.AddressTopic(spender), chain.AddressTopic(spender)},
	}
	s.Eventually(func() bool { return s.hasProof(token) }, time.Second, time.Millisecond)
	s.False(s.hasProof(spender), "logs from other contracts are ignored")
	s.Equal(uint64(1000), s.cursor(), "subscribed logs do not move the cursor")

	first.errc <- errors.New("connection reset")
	s.Eventually(func() bool {
		s.chain.mu.Lock()
		defer s.chain.mu.Unlock()
		return s.chain.subCalls >= 2
	}, time.Second, time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *MaintainerSuite) TestSubscribeGivesUpOnHTTPTransport() {
	s.chain.subErr = upstream.NewError(upstream.ErrorContractMismatch, "json-rpc", "no subscriptions", rpc.ErrNotificationsUnsupported)

	err := s.newMaintainer().Subscribe(context.Background())

	s.Require().Error(err)
	s.Equal(1, s.chain.subCalls)
}
