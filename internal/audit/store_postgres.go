package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// PostgresStore writes the trail to attestation_audit
// (migrations/002_attestation_audit.up.sql).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	reasons := event.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	raw, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("encode audit reasons: %w", err)
	}
	var fid sql.NullInt64
	if event.FID != 0 {
		fid = sql.NullInt64{Int64: int64(event.FID), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attestation_audit (
			occurred_at, request_id, outcome, kind, wallet, token, spender, fid, nonce, reasons
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.Timestamp.UTC(), event.RequestID, string(event.Outcome), event.Kind,
		strings.ToLower(event.Wallet), strings.ToLower(event.Token), strings.ToLower(event.Spender),
		fid, event.Nonce, raw)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]Event, error) {
	if limit <= 0 || limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, request_id, outcome, kind, wallet, token, spender, fid, nonce, reasons
		FROM attestation_audit
		WHERE wallet = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, strings.ToLower(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			outcome string
			fid     sql.NullInt64
			raw     []byte
		)
		if err := rows.Scan(&ev.Timestamp, &ev.RequestID, &outcome, &ev.Kind,
			&ev.Wallet, &ev.Token, &ev.Spender, &fid, &ev.Nonce, &raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Outcome = Outcome(outcome)
		if fid.Valid {
			ev.FID = uint64(fid.Int64)
		}
		if err := json.Unmarshal(raw, &ev.Reasons); err != nil {
			return nil, fmt.Errorf("decode audit reasons: %w", err)
		}
		if len(ev.Reasons) == 0 {
			ev.Reasons = nil
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
