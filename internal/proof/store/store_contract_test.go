package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"attestor/internal/proof/models"
	"attestor/internal/proof/store"
	"attestor/internal/sentinel"
	"attestor/pkg/testutil"
)

var (
	walletA = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	walletB = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	tokenA  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	tokenB  = common.HexToAddress("0x4200000000000000000000000000000000000006")
	spender = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

func record(wallet, token common.Address, block uint64) models.Record {
	return models.Record{
		Wallet:      wallet,
		Token:       token,
		Spender:     spender,
		BlockNumber: block,
		TxHash:      common.BigToHash(common.Big1),
		ObservedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// contractSuite holds the behaviour every Store must share. Backend suites
// embed it and set newStore.
type contractSuite struct {
	suite.Suite
	newStore func() store.Store
}

func (s *contractSuite) TestPutThenFind() {
	ctx := context.Background()
	st := s.newStore()

	inserted, err := st.PutIfAbsent(ctx, record(walletA, tokenA, 10))
	s.Require().NoError(err)
	s.True(inserted)

	got, err := st.Find(ctx, models.NewKey(walletA, tokenA, spender))
	s.Require().NoError(err)
	s.Equal(uint64(10), got.BlockNumber)
	s.Equal(walletA, got.Wallet)
	s.True(got.ObservedAt.Equal(record(walletA, tokenA, 10).ObservedAt))
}

func (s *contractSuite) TestFindMissingIsNotFound() {
	_, err := s.newStore().Find(context.Background(), models.NewKey(walletA, tokenA, spender))
	s.True(errors.Is(err, sentinel.ErrNotFound), "got %v", err)
}

func (s *contractSuite) TestFirstObservationWins() {
	ctx := context.Background()
	st := s.newStore()

	_, err := st.PutIfAbsent(ctx, record(walletA, tokenA, 10))
	s.Require().NoError(err)
	inserted, err := st.PutIfAbsent(ctx, record(walletA, tokenA, 99))
	s.Require().NoError(err)
	s.False(inserted)

	got, err := st.Find(ctx, models.NewKey(walletA, tokenA, spender))
	s.Require().NoError(err)
	s.Equal(uint64(10), got.BlockNumber)
}

func (s *contractSuite) TestKeyIgnoresHexCase() {
	ctx := context.Background()
	st := s.newStore()

	_, err := st.PutIfAbsent(ctx, record(walletA, tokenA, 10))
	s.Require().NoError(err)

	lower := common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	_, err = st.Find(ctx, models.NewKey(lower, tokenA, spender))
	s.NoError(err)
}

func (s *contractSuite) TestListByWallet() {
	ctx := context.Background()
	st := s.newStore()

	for _, rec := range []models.Record{
		record(walletA, tokenB, 20),
		record(walletA, tokenA, 10),
		record(walletB, tokenA, 5),
	} {
		_, err := st.PutIfAbsent(ctx, rec)
		s.Require().NoError(err)
	}

	got, err := st.ListByWallet(ctx, walletA)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(uint64(10), got[0].BlockNumber)
	s.Equal(uint64(20), got[1].BlockNumber)

	none, err := st.ListByWallet(ctx, spender)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *contractSuite) TestCursorNeverRegresses() {
	ctx := context.Background()
	st := s.newStore()

	c, err := st.LoadCursor(ctx)
	s.Require().NoError(err)
	s.Zero(c.LastSyncedBlock)

	c, err = st.AdvanceCursor(ctx, 500)
	s.Require().NoError(err)
	s.Equal(uint64(500), c.LastSyncedBlock)

	c, err = st.AdvanceCursor(ctx, 300)
	s.Require().NoError(err)
	s.Equal(uint64(500), c.LastSyncedBlock)

	c, err = st.LoadCursor(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(500), c.LastSyncedBlock)
	s.False(c.UpdatedAt.IsZero())
}

func (s *contractSuite) TestConcurrentPutSingleWinner() {
	ctx := context.Background()
	st := s.newStore()

	res := testutil.RunConcurrentCtx(ctx, 20, func(ctx context.Context, idx int) error {
		inserted, err := st.PutIfAbsent(ctx, record(walletA, tokenA, uint64(idx+1)))
		if err != nil {
			return err
		}
		if !inserted {
			return testutil.ErrLost
		}
		return nil
	})

	s.Equal(int32(1), res.Successes)
	s.Equal(int32(19), res.Lost)
	s.Zero(res.Errors)
}

func (s *contractSuite) TestConcurrentCursorAdvanceKeepsMax() {
	ctx := context.Background()
	st := s.newStore()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(block uint64) {
			defer wg.Done()
			_, err := st.AdvanceCursor(ctx, block)
			s.NoError(err)
		}(uint64(i * 10))
	}
	wg.Wait()

	c, err := st.LoadCursor(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(500), c.LastSyncedBlock)
}
