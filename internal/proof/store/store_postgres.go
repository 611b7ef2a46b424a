package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/proof/models"
	"attestor/internal/sentinel"
)

// PostgresStore persists proofs in PostgreSQL. Schema: migrations/001_revoke_proofs.up.sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, rec models.Record) (bool, error) {
	observed := rec.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO revoke_proofs (wallet, token, spender, block_number, tx_hash, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wallet, token, spender) DO NOTHING
	`, lowerHex(rec.Wallet), lowerHex(rec.Token), lowerHex(rec.Spender),
		int64(rec.BlockNumber), rec.TxHash.Hex(), observed.UTC())
	if err != nil {
		return false, fmt.Errorf("insert proof: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert proof rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Find(ctx context.Context, key models.Key) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet, token, spender, block_number, tx_hash, observed_at
		FROM revoke_proofs
		WHERE wallet = $1 AND token = $2 AND spender = $3
	`, lowerHex(key.Wallet), lowerHex(key.Token), lowerHex(key.Spender))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proof %s: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find proof: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet common.Address) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet, token, spender, block_number, tx_hash, observed_at
		FROM revoke_proofs
		WHERE wallet = $1
		ORDER BY block_number, token, spender
		LIMIT $2
	`, lowerHex(wallet), maxProofsPerWallet)
	if err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proofs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) LoadCursor(ctx context.Context) (models.Cursor, error) {
	var block int64
	var updated time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_synced_block, updated_at FROM sync_cursor WHERE id = 1`,
	).Scan(&block, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cursor{}, nil
	}
	if err != nil {
		return models.Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return models.Cursor{LastSyncedBlock: uint64(block), UpdatedAt: updated.UTC()}, nil
}

// AdvanceCursor relies on GREATEST so concurrent writers can never move it back.
func (s *PostgresStore) AdvanceCursor(ctx context.Context, block uint64) (models.Cursor, error) {
	var last int64
	var updated time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sync_cursor (id, last_synced_block, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			updated_at = CASE WHEN EXCLUDED.last_synced_block > sync_cursor.last_synced_block
				THEN EXCLUDED.updated_at ELSE sync_cursor.updated_at END,
			last_synced_block = GREATEST(sync_cursor.last_synced_block, EXCLUDED.last_synced_block)
		RETURNING last_synced_block, updated_at
	`, int64(block)).Scan(&last, &updated)
	if err != nil {
		return models.Cursor{}, fmt.Errorf("advance cursor: %w", err)
	}
	return models.Cursor{LastSyncedBlock: uint64(last), UpdatedAt: updated.UTC()}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var wallet, token, spender, txHash string
	var block int64
	var observed time.Time
	if err := row.Scan(&wallet, &token, &spender, &block, &txHash, &observed); err != nil {
		return nil, err
	}
	return &models.Record{
		Wallet:      common.HexToAddress(wallet),
		Token:       common.HexToAddress(token),
		Spender:     common.HexToAddress(spender),
		BlockNumber: uint64(block),
		TxHash:      common.HexToHash(txHash),
		ObservedAt:  observed.UTC(),
	}, nil
}

func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}
