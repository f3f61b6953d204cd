package pg

import (
	"context"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

type FailureRepo struct{ db *DB }

var _ application.FailureRepo = (*FailureRepo)(nil)

func NewFailureRepo(db *DB) *FailureRepo { return &FailureRepo{db: db} }

func (r *FailureRepo) Record(ctx context.Context, rec domain.FailureRecord) error {
	const q = `
        INSERT INTO failure_records(symbol, data_type, reason, occurred_at, date_key)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, rec.Symbol, string(rec.DataType), rec.Reason, rec.OccurredAt, rec.DateKey)
	return err
}

func (r *FailureRepo) ListSince(ctx context.Context, from time.Time) ([]domain.FailureRecord, error) {
	const q = `
        SELECT symbol, data_type, reason, occurred_at, date_key
        FROM failure_records
        WHERE occurred_at >= $1
        ORDER BY occurred_at`
	rows, err := r.db.Pool.Query(ctx, q, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FailureRecord
	for rows.Next() {
		var rec domain.FailureRecord
		var dt string
		if err := rows.Scan(&rec.Symbol, &dt, &rec.Reason, &rec.OccurredAt, &rec.DateKey); err != nil {
			return nil, err
		}
		rec.DataType = domain.DataType(dt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *FailureRepo) FailedSymbols(ctx context.Context, dateKey string, dt domain.DataType) ([]string, error) {
	const q = `
        SELECT DISTINCT symbol FROM failure_records
        WHERE date_key = $1 AND ($2 = '' OR data_type = $2)
        ORDER BY symbol`
	rows, err := r.db.Pool.Query(ctx, q, dateKey, string(dt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
