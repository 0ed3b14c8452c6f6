package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stdlreset/config"
	"stdlreset/eligibility"
)

// The conditional upsert is an explicit two-branch contract: attempt the
// update, and only when it matches no row, insert. Each branch pair runs
// inside a savepoint so a failure on one entity never poisons the enclosing
// transaction for the rest of the batch.

const (
	defaultPersonFlagUpdate = `
        UPDATE person_flag
        SET value = 'PAPR',
            last_maintained = now()
        WHERE person_nbr = $1
        AND flag_code = 'STDL'
`
	defaultPersonFlagInsert = `
        INSERT INTO person_flag (person_nbr, flag_code, value, last_maintained)
        VALUES ($1, 'STDL', 'PAPR', now())
`
	defaultOrgFlagUpdate = `
        UPDATE org_flag
        SET value = 'PAPR',
            last_maintained = now()
        WHERE org_nbr = $1
        AND flag_code = 'STDL'
`
	defaultOrgFlagInsert = `
        INSERT INTO org_flag (org_nbr, flag_code, value, last_maintained)
        VALUES ($1, 'STDL', 'PAPR', now())
`
)

// UpsertStatements is the update/insert pair applied per entity.
type UpsertStatements struct {
	Update string
	Insert string
}

// StatementsFor resolves the per-kind statement pair, honoring configuration
// overrides and falling back to the built-ins.
func StatementsFor(kind eligibility.Kind, overrides config.Queries) (UpsertStatements, error) {
	switch kind {
	case eligibility.KindPerson:
		st := UpsertStatements{Update: overrides.PersonFlagUpdate, Insert: overrides.PersonFlagInsert}
		if st.Update == "" {
			st.Update = defaultPersonFlagUpdate
		}
		if st.Insert == "" {
			st.Insert = defaultPersonFlagInsert
		}
		return st, nil
	case eligibility.KindOrg:
		st := UpsertStatements{Update: overrides.OrgFlagUpdate, Insert: overrides.OrgFlagInsert}
		if st.Update == "" {
			st.Update = defaultOrgFlagUpdate
		}
		if st.Insert == "" {
			st.Insert = defaultOrgFlagInsert
		}
		return st, nil
	default:
		return UpsertStatements{}, fmt.Errorf("reconcile: unknown entity kind %q", kind)
	}
}

// FlagRepository applies the paper-default upsert batch against the per-kind
// delivery-flag table.
type FlagRepository struct {
	overrides config.Queries
}

func NewFlagRepository(overrides config.Queries) *FlagRepository {
	return &FlagRepository{overrides: overrides}
}

// ApplyPaperDefault runs the conditional upsert for every entity number in
// submission order inside the caller's transaction. Row-level failures are
// isolated with savepoints and returned as RowError values whose offsets
// index into entityNumbers; they never abort the batch. Only infrastructure
// failures (a broken savepoint, an unusable connection) return an error.
func (r *FlagRepository) ApplyPaperDefault(ctx context.Context, tx pgx.Tx, kind eligibility.Kind, entityNumbers []int64) ([]RowError, error) {
	st, err := StatementsFor(kind, r.overrides)
	if err != nil {
		return nil, err
	}

	var rowErrs []RowError
	for i, nbr := range entityNumbers {
		if _, err := tx.Exec(ctx, "SAVEPOINT flag_upsert"); err != nil {
			return nil, fmt.Errorf("reconcile: savepoint: %w", err)
		}

		if err := upsertOne(ctx, tx, st, nbr); err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT flag_upsert"); rbErr != nil {
				return nil, fmt.Errorf("reconcile: rollback to savepoint: %w", rbErr)
			}
			rowErrs = append(rowErrs, RowError{Offset: i, Message: err.Error()})
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT flag_upsert"); err != nil {
			return nil, fmt.Errorf("reconcile: release savepoint: %w", err)
		}
	}

	return rowErrs, nil
}

func upsertOne(ctx context.Context, tx pgx.Tx, st UpsertStatements, entityNumber int64) error {
	tag, err := tx.Exec(ctx, st.Update, entityNumber)
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, st.Insert, entityNumber); err != nil {
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}
