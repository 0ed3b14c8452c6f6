package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"stdlreset/eligibility"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// FlagStore is the data access the engine needs.
type FlagStore interface {
	ApplyPaperDefault(ctx context.Context, tx pgx.Tx, kind eligibility.Kind, entityNumbers []int64) ([]RowError, error)
}

// Engine performs the batched flag reset for one entity kind at a time and
// classifies every fetched record as Success or Fail.
type Engine struct {
	pool       TxBeginner
	store      FlagStore
	reportOnly bool
	log        logrus.FieldLogger
}

// NewEngine builds an Engine. reportOnly is the single commit-or-rollback
// decision for the run: the engine reads it, never computes it. Outcomes are
// identical either way.
func NewEngine(pool TxBeginner, store FlagStore, reportOnly bool, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{pool: pool, store: store, reportOnly: reportOnly, log: log}
}

// Reconcile deduplicates the entity numbers in records, submits one
// conditional upsert per distinct entity, and maps row-level failures back to
// every original record sharing the failed entity number. An empty input
// short-circuits without touching the database.
func (e *Engine) Reconcile(ctx context.Context, kind eligibility.Kind, records []eligibility.Record) (successes, fails []Outcome, err error) {
	if len(records) == 0 {
		return nil, nil, nil
	}

	// The submission batch must be an explicitly ordered sequence so failure
	// offsets map deterministically back to entity numbers.
	entityNumbers := dedupeOrdered(records)

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rowErrs, err := e.store.ApplyPaperDefault(ctx, tx, kind, entityNumbers)
	if err != nil {
		return nil, nil, err
	}

	if e.reportOnly {
		if err := tx.Rollback(ctx); err != nil {
			return nil, nil, fmt.Errorf("reconcile: rollback report-only tx: %w", err)
		}
	} else {
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("reconcile: commit tx: %w", err)
		}
	}

	failedNumbers := make(map[int64]bool, len(rowErrs))
	for _, re := range rowErrs {
		if re.Offset < 0 || re.Offset >= len(entityNumbers) {
			return nil, nil, fmt.Errorf("reconcile: row error offset %d outside batch of %d", re.Offset, len(entityNumbers))
		}
		nbr := entityNumbers[re.Offset]
		failedNumbers[nbr] = true
		e.log.WithFields(logrus.Fields{
			"kind":       kind,
			"entity_nbr": nbr,
			"row_offset": re.Offset,
		}).Warnf("flag upsert failed: %s", re.Message)
	}

	// Classification runs over the original per-account records, not the
	// deduplicated batch: a failing entity yields one Fail per qualifying
	// account it had.
	for _, rec := range records {
		outcome := Outcome{
			EntityNumber:  rec.EntityNumber,
			AccountNumber: rec.AccountNumber,
			Kind:          rec.Kind,
			CloseDate:     rec.CloseDate,
			Result:        ResultSuccess,
		}
		if failedNumbers[rec.EntityNumber] {
			outcome.Result = ResultFail
			fails = append(fails, outcome)
			continue
		}
		successes = append(successes, outcome)
	}

	e.log.WithFields(logrus.Fields{
		"kind":        kind,
		"records":     len(records),
		"submitted":   len(entityNumbers),
		"successes":   len(successes),
		"fails":       len(fails),
		"report_only": e.reportOnly,
	}).Info("reconciliation batch finished")

	return successes, fails, nil
}

func dedupeOrdered(records []eligibility.Record) []int64 {
	seen := make(map[int64]bool, len(records))
	out := make([]int64, 0, len(records))
	for _, r := range records {
		if seen[r.EntityNumber] {
			continue
		}
		seen[r.EntityNumber] = true
		out = append(out, r.EntityNumber)
	}
	return out
}
