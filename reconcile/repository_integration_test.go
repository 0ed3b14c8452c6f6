package reconcile

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stdlreset/config"
	"stdlreset/eligibility"
)

// TestFlagUpsert_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the two-branch upsert, savepoint isolation, and the
// report-only rollback policy against live flag tables.
func TestFlagUpsert_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "person_flag") || !tableExists(ctx, t, pool, "person") {
		t.Skip("database schema missing; apply migrations/ first")
	}

	// Seed two persons: one with an existing non-paper flag (update branch),
	// one with no flag row at all (insert branch).
	basis := time.Now().UnixNano() % 1_000_000_000
	withFlag := 10_000_000_000 + basis
	withoutFlag := 11_000_000_000 + basis

	for _, nbr := range []int64{withFlag, withoutFlag} {
		if _, err := pool.Exec(ctx, `INSERT INTO person (person_nbr, first_name, last_name) VALUES ($1, 'Inte', 'Gration')`, nbr); err != nil {
			t.Fatalf("seed person %d: %v", nbr, err)
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO person_flag (person_nbr, flag_code, value) VALUES ($1, 'STDL', 'ELEC')`, withFlag); err != nil {
		t.Fatalf("seed flag: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM person_flag WHERE person_nbr IN ($1, $2)`, withFlag, withoutFlag)
		pool.Exec(ctx2, `DELETE FROM person WHERE person_nbr IN ($1, $2)`, withFlag, withoutFlag)
	})

	repo := NewFlagRepository(config.Queries{})

	records := []eligibility.Record{
		{Kind: eligibility.KindPerson, EntityNumber: withFlag, AccountNumber: 1, CloseDate: "01-15-2026"},
		{Kind: eligibility.KindPerson, EntityNumber: withoutFlag, AccountNumber: 2, CloseDate: "01-15-2026"},
	}

	// Report-only pass first: outcomes computed, nothing persisted.
	reportEngine := NewEngine(pool, repo, true, nil)
	successes, fails, err := reportEngine.Reconcile(ctx, eligibility.KindPerson, records)
	if err != nil {
		t.Fatalf("report-only reconcile: %v", err)
	}
	if len(successes) != 2 || len(fails) != 0 {
		t.Fatalf("expected 2 successes / 0 fails, got %d / %d", len(successes), len(fails))
	}

	var value string
	if err := pool.QueryRow(ctx, `SELECT value FROM person_flag WHERE person_nbr = $1 AND flag_code = 'STDL'`, withFlag).Scan(&value); err != nil {
		t.Fatalf("read flag after report-only: %v", err)
	}
	if value != "ELEC" {
		t.Fatalf("report-only run must not persist changes, flag became %q", value)
	}
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM person_flag WHERE person_nbr = $1`, withoutFlag).Scan(&count); err != nil {
		t.Fatalf("count flags after report-only: %v", err)
	}
	if count != 0 {
		t.Fatalf("report-only run must not insert flag rows, found %d", count)
	}

	// Commit pass: update branch flips the existing row, insert branch
	// creates the missing one.
	commitEngine := NewEngine(pool, repo, false, nil)
	successes, fails, err = commitEngine.Reconcile(ctx, eligibility.KindPerson, records)
	if err != nil {
		t.Fatalf("commit reconcile: %v", err)
	}
	if len(successes) != 2 || len(fails) != 0 {
		t.Fatalf("expected 2 successes / 0 fails, got %d / %d", len(successes), len(fails))
	}

	for _, nbr := range []int64{withFlag, withoutFlag} {
		var v string
		var maintained time.Time
		if err := pool.QueryRow(ctx, `SELECT value, last_maintained FROM person_flag WHERE person_nbr = $1 AND flag_code = 'STDL'`, nbr).Scan(&v, &maintained); err != nil {
			t.Fatalf("read flag %d after commit: %v", nbr, err)
		}
		if v != "PAPR" {
			t.Errorf("expected flag %d reset to PAPR, got %q", nbr, v)
		}
		if maintained.IsZero() {
			t.Errorf("expected last_maintained stamp for %d", nbr)
		}
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&exists); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
