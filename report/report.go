package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"stdlreset/reconcile"
)

// ErrDestinationExists signals the report artifact is already present. It is
// the run's idempotency guard: a re-run into the same destination fails fast
// instead of silently overwriting.
var ErrDestinationExists = errors.New("report: destination already exists")

// Header is the fixed CSV header row.
var Header = []string{"ENTITY_NBR", "ACCTNBR", "ENTITY_TYPE", "CLOSE_DATE", "RESULT"}

// Row is one ordered report line.
type Row struct {
	EntityNumber  int64
	AccountNumber int64
	EntityType    string
	CloseDate     string
	Result        string
}

// Assemble converts classified outcomes into report order: all successes
// first (both kinds already concatenated by the caller), then all failures.
func Assemble(successes, fails []reconcile.Outcome) []Row {
	rows := make([]Row, 0, len(successes)+len(fails))
	for _, o := range successes {
		rows = append(rows, rowFromOutcome(o))
	}
	for _, o := range fails {
		rows = append(rows, rowFromOutcome(o))
	}
	return rows
}

func rowFromOutcome(o reconcile.Outcome) Row {
	return Row{
		EntityNumber:  o.EntityNumber,
		AccountNumber: o.AccountNumber,
		EntityType:    string(o.Kind),
		CloseDate:     o.CloseDate,
		Result:        string(o.Result),
	}
}

// CSVSink writes the report file. Creation is exclusive: if the destination
// already exists the write fails before a single byte is emitted.
type CSVSink struct{}

// Exists reports whether the destination path is already occupied. Callers
// check this precondition before fetching or mutating anything.
func (CSVSink) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("report: stat %s: %w", path, err)
	}
}

// Write creates the report with a header row followed by the rows in the
// order given.
func (CSVSink) Write(path string, rows []Row) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, path)
		}
		return fmt.Errorf("report: create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.EntityNumber, 10),
			strconv.FormatInt(r.AccountNumber, 10),
			r.EntityType,
			r.CloseDate,
			r.Result,
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("report: flush: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}
