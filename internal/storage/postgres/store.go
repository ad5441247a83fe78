// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/storage"
)

// RecordStore persists records of one kind in a dedicated table. The table
// name is an opaque handle supplied by configuration.
type RecordStore struct {
	db    *sql.DB
	table string
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a store bound to the given table.
func NewRecordStore(db *sql.DB, table string) *RecordStore {
	return &RecordStore{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *RecordStore) CreateRecord(ctx context.Context, rec record.Record) (record.Record, error) {
	attrsJSON, err := json.Marshal(rec.Attributes)
	if err != nil {
		return record.Record{}, fmt.Errorf("marshal attributes: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, created_at, group_name, record_date, attributes)
		VALUES ($1, $2, $3, $4, $5)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query, rec.Owner, rec.CreatedAt, rec.Group, rec.Date, attrsJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return record.Record{}, storage.ErrSortKeyExists
		}
		return record.Record{}, err
	}
	return rec, nil
}

func (s *RecordStore) ListRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error) {
	query := fmt.Sprintf(`
		SELECT owner_id, created_at, group_name, record_date, attributes
		FROM %s
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]record.Record, 0)
	for rows.Next() {
		var (
			rec      record.Record
			attrsRaw []byte
		)
		if err := rows.Scan(&rec.Owner, &rec.CreatedAt, &rec.Group, &rec.Date, &attrsRaw); err != nil {
			return nil, err
		}
		if len(attrsRaw) > 0 {
			_ = json.Unmarshal(attrsRaw, &rec.Attributes)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Directory is a PostgreSQL-backed identity directory.
type Directory struct {
	db *sql.DB
}

var _ storage.IdentityDirectory = (*Directory)(nil)

// NewDirectory creates a directory over the identities table.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// EmailExists performs an exact-match existence check, limited to one row.
func (d *Directory) EmailExists(ctx context.Context, poolID, email string) (bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT 1 FROM identities
		WHERE pool_id = $1 AND email = $2
		LIMIT 1
	`, poolID, email)

	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
