package reconcile

import "stdlreset/eligibility"

// Result classifies a record after the flag upsert.
type Result string

const (
	ResultSuccess Result = "Success"
	ResultFail    Result = "Fail"
)

// Outcome is the per-record unit written to the report: one Outcome for every
// fetched eligibility record, keyed by the original (entity, account) pair
// even though entities are deduplicated before submission.
type Outcome struct {
	EntityNumber  int64
	AccountNumber int64
	Kind          eligibility.Kind
	CloseDate     string
	Result        Result
}

// RowError is a transient per-row upsert failure. Offset indexes into the
// deduplicated submission batch, never into the original record list; the
// engine correlates it back to entity numbers and from there to records.
type RowError struct {
	Offset  int
	Message string
}
