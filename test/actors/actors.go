package actors

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"stdlreset/config"
	"stdlreset/eligibility"
	"stdlreset/reconcile"
)

// ReportOnlyRunner executes fetch-and-reconcile passes in a loop with the
// report-only policy, so every pass rolls its transaction back. However many
// runners race, the flag tables must come out untouched.
func ReportOnlyRunner(ctx context.Context, pool *pgxpool.Pool, mode config.RunMode, stop <-chan struct{}) error {
	repo := eligibility.NewRepository(pool, config.Queries{})
	engine := reconcile.NewEngine(pool, reconcile.NewFlagRepository(config.Queries{}), true, quietLogger())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		persons, orgs, err := repo.Fetch(ctx, mode)
		if err != nil {
			return fmt.Errorf("report-only fetch: %w", err)
		}

		for _, batch := range []struct {
			kind    eligibility.Kind
			records []eligibility.Record
		}{
			{eligibility.KindPerson, persons},
			{eligibility.KindOrg, orgs},
		} {
			successes, fails, err := engine.Reconcile(ctx, batch.kind, batch.records)
			if err != nil {
				return fmt.Errorf("report-only reconcile %s: %w", batch.kind, err)
			}
			if len(successes)+len(fails) != len(batch.records) {
				return fmt.Errorf("report-only reconcile %s: classified %d of %d records",
					batch.kind, len(successes)+len(fails), len(batch.records))
			}
		}

		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// FlagWatcher snapshots the STDL flag tables up front and then polls them,
// erroring the moment a concurrent pass mutates what should be a read-only
// workload.
func FlagWatcher(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	initial, err := snapshotFlags(ctx, pool)
	if err != nil {
		return fmt.Errorf("flag watcher baseline: %w", err)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			current, err := snapshotFlags(ctx, pool)
			if err != nil {
				return fmt.Errorf("flag watcher poll: %w", err)
			}
			if current != initial {
				return fmt.Errorf("flag tables drifted during report-only soak: baseline %+v, now %+v", initial, current)
			}
		}
	}
}

type flagCounts struct {
	PersonTotal int
	PersonPaper int
	OrgTotal    int
	OrgPaper    int
}

func snapshotFlags(ctx context.Context, pool *pgxpool.Pool) (flagCounts, error) {
	var c flagCounts
	err := pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE value = 'PAPR')
                               FROM person_flag WHERE flag_code = 'STDL'`).Scan(&c.PersonTotal, &c.PersonPaper)
	if err != nil {
		return flagCounts{}, err
	}
	err = pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE value = 'PAPR')
                              FROM org_flag WHERE flag_code = 'STDL'`).Scan(&c.OrgTotal, &c.OrgPaper)
	if err != nil {
		return flagCounts{}, err
	}
	return c, nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
