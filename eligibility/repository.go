package eligibility

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stdlreset/config"
)

// Querier abstracts pgxpool.Pool for testability.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository fetches eligible records. It runs the composed query exactly
// once per call and partitions the result by entity kind.
type Repository struct {
	q         Querier
	overrides config.Queries
}

func NewRepository(q Querier, overrides config.Queries) *Repository {
	return &Repository{q: q, overrides: overrides}
}

// Fetch executes the eligibility query for the run mode and returns the
// matching rows split into person and organization lists. The run mode is
// validated before anything reaches the database.
func (r *Repository) Fetch(ctx context.Context, mode config.RunMode) (persons, orgs []Record, err error) {
	sql, args, err := BuildQuery(mode, r.overrides)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("eligibility: query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Kind, &rec.EntityNumber, &rec.AccountNumber, &rec.EntityName, &rec.CloseDate, &rec.CurrentFlag); err != nil {
			return nil, nil, fmt.Errorf("eligibility: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("eligibility: iterate records: %w", err)
	}

	persons, orgs = Partition(records)
	return persons, orgs, nil
}
