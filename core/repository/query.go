package repository

import (
	"context"
	"database/sql"
	"time"
)

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// queryAll runs query and scans every row with scan. It never returns a nil slice.
func queryAll[T any](ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// table and column are package constants, never user input.
func deleteBefore(ctx context.Context, db *sql.DB, table, column string, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
