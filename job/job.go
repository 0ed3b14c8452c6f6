package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stdlreset/config"
	"stdlreset/eligibility"
	"stdlreset/reconcile"
	"stdlreset/report"
)

// Fetcher yields eligible records partitioned by entity kind.
type Fetcher interface {
	Fetch(ctx context.Context, mode config.RunMode) (persons, orgs []eligibility.Record, err error)
}

// Reconciler applies the flag reset for one entity kind and classifies its
// records.
type Reconciler interface {
	Reconcile(ctx context.Context, kind eligibility.Kind, records []eligibility.Record) (successes, fails []reconcile.Outcome, err error)
}

// ReportSink persists the ordered outcome rows. It must reject a destination
// that already exists.
type ReportSink interface {
	Exists(path string) (bool, error)
	Write(path string, rows []report.Row) error
}

// Alerter decides and sends the failure notification.
type Alerter interface {
	Alert(failCount int, runID string) bool
}

// Deps bundles the collaborators one run threads through its stages.
type Deps struct {
	Fetcher    Fetcher
	Reconciler Reconciler
	Sink       ReportSink
	Alerter    Alerter
	Log        logrus.FieldLogger
}

// Summary reports what a run did.
type Summary struct {
	RunID         string
	PersonRecords int
	OrgRecords    int
	Successes     int
	Fails         int
	ReportPath    string
	Notified      bool
	Duration      time.Duration
}

// Run executes one reconciliation pass: precondition check, fetch, per-kind
// reconciliation, report, notification. Stages run strictly in order; each
// completes before the next starts. Configuration and precondition failures
// abort before any mutation; everything after a successful fetch still
// produces a report.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()

	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("run_id", runID)

	if err := cfg.Mode.Validate(); err != nil {
		return Summary{}, err
	}

	path := cfg.ReportPath()
	exists, err := deps.Sink.Exists(path)
	if err != nil {
		return Summary{}, err
	}
	if exists {
		return Summary{}, fmt.Errorf("%w: %s", report.ErrDestinationExists, path)
	}

	log.WithFields(logrus.Fields{
		"full_cleanup": cfg.Mode.IsFullCleanup(),
		"report_only":  cfg.ReportOnly,
		"report_path":  path,
	}).Info("reconciliation run starting")

	persons, orgs, err := deps.Fetcher.Fetch(ctx, cfg.Mode)
	if err != nil {
		return Summary{}, err
	}
	log.WithFields(logrus.Fields{
		"person_records": len(persons),
		"org_records":    len(orgs),
	}).Info("eligible records fetched")

	successes, fails, err := deps.Reconciler.Reconcile(ctx, eligibility.KindPerson, persons)
	if err != nil {
		return Summary{}, err
	}
	orgSuccesses, orgFails, err := deps.Reconciler.Reconcile(ctx, eligibility.KindOrg, orgs)
	if err != nil {
		return Summary{}, err
	}
	successes = append(successes, orgSuccesses...)
	fails = append(fails, orgFails...)

	rows := report.Assemble(successes, fails)
	if err := deps.Sink.Write(path, rows); err != nil {
		return Summary{}, err
	}
	log.WithField("rows", len(rows)).Info("report written")

	notified := deps.Alerter.Alert(len(fails), runID)

	summary := Summary{
		RunID:         runID,
		PersonRecords: len(persons),
		OrgRecords:    len(orgs),
		Successes:     len(successes),
		Fails:         len(fails),
		ReportPath:    path,
		Notified:      notified,
		Duration:      time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"successes": summary.Successes,
		"fails":     summary.Fails,
		"notified":  summary.Notified,
		"duration":  summary.Duration.String(),
	}).Info("reconciliation run finished")

	return summary, nil
}
