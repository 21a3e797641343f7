package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
)

const entryColumns = `id::text, from_agent, to_agent, kind, action, turn, payload, emitted_at`

// Archive is the append-only audit_entries table. It implements
// auditsink.Sink; rows are never updated or deleted.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive creates an Archive backed by pool.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// Name implements auditsink.Sink.
func (a *Archive) Name() string { return "postgres" }

// Publish inserts entries in one transaction. Entries already archived
// under the same id are skipped, so replaying a turn's delta is harmless.
func (a *Archive) Publish(ctx context.Context, sessionID string, entries []audit.Entry) error {
	const q = `
		INSERT INTO audit_entries (id, session_id, from_agent, to_agent, kind, action, turn, payload, emitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", e.ID, err)
		}
		batch.Queue(q, e.ID, sessionID, e.From.String(), e.To.String(), string(e.Kind), e.Action, e.Turn, raw, e.Time)
	}

	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("archive audit entries: %w", err)
		}
		return nil
	})
}

// Entries returns the archived entries of a session in emission order.
func (a *Archive) Entries(ctx context.Context, sessionID string) ([]audit.Entry, error) {
	q := `SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE session_id = $1
		ORDER BY seq ASC`

	rows, err := a.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return orEmpty(result), nil
}

// Ping reports whether the database is reachable.
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}
