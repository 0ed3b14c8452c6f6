package eligibility

// Kind tags which entity table a record belongs to.
type Kind string

const (
	KindPerson Kind = "pers"
	KindOrg    Kind = "org"
)

// Record is one (entity, qualifying closed account) pair produced by the
// eligibility query. An entity appears once per qualifying account it closed,
// so the same entity number may occur on several records. Records are
// immutable once fetched.
type Record struct {
	Kind          Kind
	EntityNumber  int64
	AccountNumber int64
	EntityName    string
	CloseDate     string // mm-dd-yyyy
	// CurrentFlag carries the entity's delivery-method flag value when one
	// exists and is not already the paper sentinel; nil otherwise.
	CurrentFlag *string
}

// Partition splits fetched records into person and organization lists.
// No deduplication happens here; the reconciliation engine dedupes entity
// numbers when it builds its submission batch.
func Partition(records []Record) (persons, orgs []Record) {
	for _, r := range records {
		switch r.Kind {
		case KindPerson:
			persons = append(persons, r)
		case KindOrg:
			orgs = append(orgs, r)
		}
	}
	return persons, orgs
}
