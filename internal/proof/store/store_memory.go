package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/proof/models"
	"attestor/internal/sentinel"
)

// InMemoryStore keeps proofs in process memory. The lock guards map access
// only and is never held across I/O.
type InMemoryStore struct {
	mu       sync.RWMutex
	proofs   map[models.Key]models.Record
	byWallet map[common.Address][]models.Key
	cursor   models.Cursor
	now      func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		proofs:   make(map[models.Key]models.Record),
		byWallet: make(map[common.Address][]models.Key),
		now:      time.Now,
	}
}

func (s *InMemoryStore) PutIfAbsent(_ context.Context, rec models.Record) (bool, error) {
	key := rec.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[key]; ok {
		return false, nil
	}
	s.proofs[key] = rec
	s.byWallet[rec.Wallet] = append(s.byWallet[rec.Wallet], key)
	return true, nil
}

func (s *InMemoryStore) Find(_ context.Context, key models.Key) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.proofs[key]
	if !ok {
		return nil, fmt.Errorf("proof %s: %w", key, sentinel.ErrNotFound)
	}
	return &rec, nil
}

func (s *InMemoryStore) ListByWallet(_ context.Context, wallet common.Address) ([]models.Record, error) {
	s.mu.RLock()
	keys := s.byWallet[wallet]
	out := make([]models.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.proofs[k])
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func (s *InMemoryStore) LoadCursor(_ context.Context) (models.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, nil
}

func (s *InMemoryStore) AdvanceCursor(_ context.Context, block uint64) (models.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block > s.cursor.LastSyncedBlock {
		s.cursor = models.Cursor{LastSyncedBlock: block, UpdatedAt: s.now().UTC()}
	}
	return s.cursor, nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

// sortRecords orders by block then token so listings are stable across stores.
func sortRecords(recs []models.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].BlockNumber != recs[j].BlockNumber {
			return recs[i].BlockNumber < recs[j].BlockNumber
		}
		return recs[i].Key().String() < recs[j].Key().String()
	})
}
