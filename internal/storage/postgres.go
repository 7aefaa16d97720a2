package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// PGIndex keeps one immutable row per scan in Postgres
type PGIndex struct {
	pool *pgxpool.Pool
}

// NewPGIndex connects and initializes schema.
func NewPGIndex(ctx context.Context, dsn string) (*PGIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DSN for scan index")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	ix := &PGIndex{pool: pool}
	if err := ix.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *PGIndex) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS scan_results (
  id                TEXT PRIMARY KEY,
  chain             TEXT NOT NULL,
  address           TEXT NOT NULL,
  status            TEXT NOT NULL,
  risk_score        INT,
  threat_categories TEXT[] NOT NULL DEFAULT '{}',
  code_hash         TEXT NOT NULL DEFAULT '',
  storage_hash      TEXT NOT NULL DEFAULT '',
  signer_id         TEXT NOT NULL DEFAULT '',
  signature         TEXT NOT NULL DEFAULT '',
  completed_at      TIMESTAMPTZ NOT NULL,
  payload           JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scan_results_token_idx ON scan_results (chain, lower(address), completed_at DESC);
`
	if _, err := ix.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (ix *PGIndex) Close() {
	ix.pool.Close()
}

// Record inserts r. Results are immutable, so a repeated id is left untouched.
func (ix *PGIndex) Record(ctx context.Context, r models.ScanResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	cats := make([]string, len(r.ThreatCategories))
	for i, c := range r.ThreatCategories {
		cats[i] = string(c)
	}

	const query = `
INSERT INTO scan_results (id, chain, address, status, risk_score, threat_categories,
  code_hash, storage_hash, signer_id, signature, completed_at, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`
	_, err = ix.pool.Exec(ctx, query,
		r.ID, r.Request.Chain, r.Request.Address, string(r.Status), r.RiskScore, cats,
		r.CodeHash, r.Persistence.StorageHash, r.SignerID, r.Signature, r.CompletedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", r.ID, err)
	}
	return nil
}

// History returns the most recent scans of a token, newest first
func (ix *PGIndex) History(ctx context.Context, chain, address string, limit int) ([]IndexEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
SELECT id, chain, address, status, risk_score, threat_categories, code_hash, storage_hash, signer_id, completed_at
FROM scan_results
WHERE chain = $1 AND lower(address) = $2
ORDER BY completed_at DESC
LIMIT $3`
	rows, err := ix.pool.Query(ctx, query, chain, strings.ToLower(address), limit)
	if err != nil {
		return nil, fmt.Errorf("query scan history: %w", err)
	}
	defer rows.Close()

	var out []IndexEntry
	for rows.Next() {
		var e IndexEntry
		var status string
		if err := rows.Scan(&e.ID, &e.Chain, &e.Address, &status, &e.RiskScore, &e.ThreatCategories,
			&e.CodeHash, &e.StorageHash, &e.SignerID, &e.CompletedAt); err != nil {
			return nil, err
		}
		e.Status = models.ScanStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, chain, address)
	}
	return out, nil
}

// Payload returns the full stored result for a scan id
func (ix *PGIndex) Payload(ctx context.Context, id string) (models.ScanResult, error) {
	var raw []byte
	err := ix.pool.QueryRow(ctx, "SELECT payload FROM scan_results WHERE id = $1", id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ScanResult{}, fmt.Errorf("%w: scan %s", ErrNotFound, id)
	}
	if err != nil {
		return models.ScanResult{}, err
	}
	var r models.ScanResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.ScanResult{}, fmt.Errorf("decode scan %s: %w", id, err)
	}
	return r, nil
}
