package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"stdlreset/config"
	"stdlreset/db"
	"stdlreset/eligibility"
	"stdlreset/job"
	"stdlreset/notify"
	"stdlreset/reconcile"
	"stdlreset/report"
)

func main() {
	var (
		configPath  = flag.String("config", "stdlreset.toml", "path to the job config file")
		runDate     = flag.String("run-date", "", "reconcile closures effective on this date (mm-dd-yyyy)")
		fullCleanup = flag.Bool("full-cleanup", false, "reconcile against the most recent closure on record")
		reportOnly  = flag.Bool("report-only", false, "compute and report outcomes but roll back all flag changes")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath, config.Options{
		FullCleanup: *fullCleanup,
		RunDate:     *runDate,
		ReportOnly:  *reportOnly,
	})
	if err != nil {
		log.WithError(err).Error("configuration error")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Error("bootstrap database pool")
		os.Exit(1)
	}
	defer pool.Close()

	deps := job.Deps{
		Fetcher:    eligibility.NewRepository(pool, cfg.Queries),
		Reconciler: reconcile.NewEngine(pool, reconcile.NewFlagRepository(cfg.Queries), cfg.ReportOnly, log),
		Sink:       report.CSVSink{},
		Alerter: notify.NewNotifier(notify.Settings{
			Enabled:    cfg.Notify.Enabled,
			Recipients: cfg.Notify.Recipients,
			FromAddr:   cfg.Notify.FromAddr,
		}, notify.NewSMTPSender(cfg.Notify.SMTPAddr), log),
		Log: log,
	}

	if _, err := job.Run(ctx, cfg, deps); err != nil {
		log.WithError(err).Error("reconciliation run failed")
		os.Exit(1)
	}
}
