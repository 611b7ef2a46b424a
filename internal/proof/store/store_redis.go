package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"attestor/internal/proof/models"
	"attestor/internal/sentinel"
)

const (
	proofKeyPrefix  = "proof:"
	walletKeyPrefix = "wallet_proofs:"
	cursorKey       = "sync:cursor"

	// maxProofsPerWallet caps ListByWallet so a hot wallet cannot blow up a response.
	maxProofsPerWallet = 500
)

// advanceCursorScript keeps the cursor monotonic under concurrent writers.
// KEYS[1] cursor hash, ARGV[1] block, ARGV[2] unix nanos.
var advanceCursorScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'block') or '-1')
local next = tonumber(ARGV[1])
if next > cur then
  redis.call('HSET', KEYS[1], 'block', ARGV[1], 'updated_at', ARGV[2])
  return {ARGV[1], ARGV[2]}
end
return {tostring(cur), redis.call('HGET', KEYS[1], 'updated_at')}
`)

// recordJSON is the stored form of a proof record.
type recordJSON struct {
	Wallet      string `json:"wallet"`
	Token       string `json:"token"`
	Spender     string `json:"spender"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	ObservedAt  int64  `json:"observed_at"` // Unix nano
}

func recordToJSON(r models.Record) recordJSON {
	return recordJSON{
		Wallet:      strings.ToLower(r.Wallet.Hex()),
		Token:       strings.ToLower(r.Token.Hex()),
		Spender:     strings.ToLower(r.Spender.Hex()),
		BlockNumber: r.BlockNumber,
		TxHash:      r.TxHash.Hex(),
		ObservedAt:  r.ObservedAt.UnixNano(),
	}
}

func recordFromJSON(j recordJSON) models.Record {
	return models.Record{
		Wallet:      common.HexToAddress(j.Wallet),
		Token:       common.HexToAddress(j.Token),
		Spender:     common.HexToAddress(j.Spender),
		BlockNumber: j.BlockNumber,
		TxHash:      common.HexToHash(j.TxHash),
		ObservedAt:  time.Unix(0, j.ObservedAt).UTC(),
	}
}

// RedisStore persists proofs in Redis so several instances share one index.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func proofKey(k models.Key) string {
	return proofKeyPrefix + k.String()
}

func walletKey(wallet common.Address) string {
	return walletKeyPrefix + strings.ToLower(wallet.Hex())
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, rec models.Record) (bool, error) {
	data, err := json.Marshal(recordToJSON(rec))
	if err != nil {
		return false, fmt.Errorf("marshal proof: %w", err)
	}

	var setNX *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, proofKey(rec.Key()), data, 0)
		// Set membership is idempotent, so adding on a lost race is harmless.
		pipe.SAdd(ctx, walletKey(rec.Wallet), rec.Key().String())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("put proof: %w", err)
	}
	return setNX.Val(), nil
}

func (s *RedisStore) Find(ctx context.Context, key models.Key) (*models.Record, error) {
	data, err := s.client.Get(ctx, proofKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("proof %s: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find proof: %w", err)
	}

	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal proof: %w", err)
	}
	rec := recordFromJSON(j)
	return &rec, nil
}

func (s *RedisStore) ListByWallet(ctx context.Context, wallet common.Address) ([]models.Record, error) {
	members, err := s.client.SRandMemberN(ctx, walletKey(wallet), maxProofsPerWallet).Result()
	if err != nil {
		return nil, fmt.Errorf("list proof keys: %w", err)
	}
	if len(members) == 0 {
		return []models.Record{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = proofKeyPrefix + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load proofs: %w", err)
	}

	out := make([]models.Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var j recordJSON
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			return nil, fmt.Errorf("unmarshal proof: %w", err)
		}
		out = append(out, recordFromJSON(j))
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) LoadCursor(ctx context.Context) (models.Cursor, error) {
	vals, err := s.client.HMGet(ctx, cursorKey, "block", "updated_at").Result()
	if err != nil {
		return models.Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return parseCursor(vals)
}

func (s *RedisStore) AdvanceCursor(ctx context.Context, block uint64) (models.Cursor, error) {
	res, err := advanceCursorScript.Run(ctx, s.client, []string{cursorKey},
		block, s.now().UnixNano()).Slice()
	if err != nil {
		return models.Cursor{}, fmt.Errorf("advance cursor: %w", err)
	}
	return parseCursor(res)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// parseCursor reads a [block, updated_at] pair; nil entries mean no cursor yet.
func parseCursor(vals []interface{}) (models.Cursor, error) {
	if len(vals) != 2 || vals[0] == nil {
		return models.Cursor{}, nil
	}
	var block, updated uint64
	if _, err := fmt.Sscan(fmt.Sprint(vals[0]), &block); err != nil {
		return models.Cursor{}, fmt.Errorf("parse cursor block: %w", err)
	}
	c := models.Cursor{LastSyncedBlock: block}
	if vals[1] != nil {
		if _, err := fmt.Sscan(fmt.Sprint(vals[1]), &updated); err == nil {
			c.UpdatedAt = time.Unix(0, int64(updated)).UTC()
		}
	}
	return c, nil
}
