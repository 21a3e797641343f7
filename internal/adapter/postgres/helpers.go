package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntry reads one audit_entries row selected with entryColumns.
func scanEntry(row scannable) (audit.Entry, error) {
	var (
		e    audit.Entry
		kind string
		raw  []byte
	)
	if err := row.Scan(&e.ID, &e.From, &e.To, &kind, &e.Action, &e.Turn, &raw, &e.Time); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	e.Kind = audit.Kind(kind)
	if err := json.Unmarshal(raw, &e.Payload); err != nil {
		return audit.Entry{}, fmt.Errorf("decode payload of %s: %w", e.ID, err)
	}
	e.Time = e.Time.UTC()
	return e, nil
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
