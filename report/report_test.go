package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stdlreset/eligibility"
	"stdlreset/reconcile"
)

func TestAssemble_SuccessesBeforeFails(t *testing.T) {
	successes := []reconcile.Outcome{
		{EntityNumber: 100, AccountNumber: 501, Kind: eligibility.KindPerson, CloseDate: "03-14-2026", Result: reconcile.ResultSuccess},
		{EntityNumber: 900, AccountNumber: 700, Kind: eligibility.KindOrg, CloseDate: "03-14-2026", Result: reconcile.ResultSuccess},
	}
	fails := []reconcile.Outcome{
		{EntityNumber: 200, AccountNumber: 601, Kind: eligibility.KindPerson, CloseDate: "03-15-2026", Result: reconcile.ResultFail},
	}

	rows := Assemble(successes, fails)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Result != "Success" || rows[1].Result != "Success" || rows[2].Result != "Fail" {
		t.Errorf("expected successes before fails, got %+v", rows)
	}
	if rows[1].EntityType != "org" {
		t.Errorf("expected entity type tag preserved, got %q", rows[1].EntityType)
	}
}

func TestWrite_FileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdl_reset.csv")

	rows := []Row{
		{EntityNumber: 100, AccountNumber: 501, EntityType: "pers", CloseDate: "03-14-2026", Result: "Success"},
		{EntityNumber: 900, AccountNumber: 700, EntityType: "org", CloseDate: "03-14-2026", Result: "Fail"},
	}
	if err := (CSVSink{}).Write(path, rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "ENTITY_NBR,ACCTNBR,ENTITY_TYPE,CLOSE_DATE,RESULT" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "100,501,pers,03-14-2026,Success" {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if lines[2] != "900,700,org,03-14-2026,Fail" {
		t.Errorf("unexpected second row %q", lines[2])
	}
}

func TestWrite_FailsFastWhenDestinationExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdl_reset.csv")
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("pre-create: %v", err)
	}

	err := (CSVSink{}).Write(path, []Row{{EntityNumber: 1, AccountNumber: 2, EntityType: "pers", CloseDate: "03-14-2026", Result: "Success"}})
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}

	// No partial write: the original content is untouched.
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read back: %v", readErr)
	}
	if string(data) != "previous run\n" {
		t.Errorf("existing file must not be modified, got %q", string(data))
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stdl_reset.csv")

	exists, err := (CSVSink{}).Exists(path)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Errorf("expected missing destination to report false")
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create: %v", err)
	}
	exists, err = (CSVSink{}).Exists(path)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Errorf("expected present destination to report true")
	}
}

func TestWrite_EmptyRunStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdl_reset.csv")
	if err := (CSVSink{}).Write(path, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.TrimSpace(string(data)) != "ENTITY_NBR,ACCTNBR,ENTITY_TYPE,CLOSE_DATE,RESULT" {
		t.Errorf("expected header-only report, got %q", string(data))
	}
}
