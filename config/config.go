package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	// ErrAmbiguousRunMode signals both full-cleanup and a fixed run date were supplied.
	ErrAmbiguousRunMode = errors.New("config: full-cleanup and run-date are mutually exclusive")
	// ErrMissingRunMode signals neither full-cleanup nor a fixed run date was supplied.
	ErrMissingRunMode = errors.New("config: either full-cleanup or run-date must be supplied")
	// ErrBadRunDate signals the run date is not a valid mm-dd-yyyy value.
	ErrBadRunDate = errors.New("config: run-date must be a valid mm-dd-yyyy date")
)

// RunDateLayout is the wire format for closure dates throughout the job.
const RunDateLayout = "01-02-2006"

const defaultFromAddr = "stdlreset-noreply@localhost"

// RunMode selects which closure-date join the eligibility query uses.
// It is constructible only through NewRunMode, which enforces that exactly
// one of full-cleanup and fixed-date is chosen.
type RunMode struct {
	fullCleanup bool
	runDate     string
}

// NewRunMode validates the mutually exclusive run-mode switches.
func NewRunMode(fullCleanup bool, runDate string) (RunMode, error) {
	runDate = strings.TrimSpace(runDate)

	if fullCleanup && runDate != "" {
		return RunMode{}, fmt.Errorf("%w: full-cleanup=%t run-date=%q", ErrAmbiguousRunMode, fullCleanup, runDate)
	}
	if !fullCleanup && runDate == "" {
		return RunMode{}, ErrMissingRunMode
	}

	if runDate != "" {
		parsed, err := time.Parse(RunDateLayout, runDate)
		if err != nil {
			return RunMode{}, fmt.Errorf("%w: %q", ErrBadRunDate, runDate)
		}
		// Round-trip so "1-2-2026" style input is normalized before it
		// reaches the query parameter.
		runDate = parsed.Format(RunDateLayout)
	}

	return RunMode{fullCleanup: fullCleanup, runDate: runDate}, nil
}

// IsFullCleanup reports whether the run scans the entire closure history.
func (m RunMode) IsFullCleanup() bool { return m.fullCleanup }

// RunDate returns the fixed closure date and whether one is set.
func (m RunMode) RunDate() (string, bool) { return m.runDate, m.runDate != "" }

// Validate rejects the zero value, which carries neither selector.
func (m RunMode) Validate() error {
	if !m.fullCleanup && m.runDate == "" {
		return ErrMissingRunMode
	}
	return nil
}

// Database holds connection settings. DATABASE_URL takes precedence over the
// file value so schedulers can inject credentials without editing the config.
type Database struct {
	DSN string `toml:"dsn"`
}

// Report holds the report sink destination.
type Report struct {
	OutputDir string `toml:"output_dir"`
	FileName  string `toml:"file_name"`
}

// Notify holds the alert-email settings.
type Notify struct {
	Enabled    bool     `toml:"enabled"`
	Recipients []string `toml:"recipients"`
	SMTPAddr   string   `toml:"smtp_addr"`
	FromAddr   string   `toml:"from_addr"`
}

// Queries carries optional overrides for the SQL fragments the job composes.
// Empty fields fall back to the built-in statements.
type Queries struct {
	FixedDateJoin    string `toml:"fixed_date_join"`
	FullCleanupJoin  string `toml:"full_cleanup_join"`
	PersonFlagUpdate string `toml:"person_flag_update"`
	PersonFlagInsert string `toml:"person_flag_insert"`
	OrgFlagUpdate    string `toml:"org_flag_update"`
	OrgFlagInsert    string `toml:"org_flag_insert"`
}

// Config is the immutable run configuration threaded through every component.
type Config struct {
	Database Database `toml:"database"`
	Report   Report   `toml:"report"`
	Notify   Notify   `toml:"notify"`
	Queries  Queries  `toml:"queries"`

	Mode       RunMode `toml:"-"`
	ReportOnly bool    `toml:"-"`
}

// Options are the per-invocation switches supplied on the command line.
type Options struct {
	FullCleanup bool
	RunDate     string
	ReportOnly  bool
}

// Load reads the TOML config file, applies environment overrides and the
// invocation options, and validates everything the run depends on. All
// failures here are configuration errors: the job must abort before touching
// the database.
func Load(path string, opts Options) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database dsn is required (set database.dsn or DATABASE_URL)")
	}

	mode, err := NewRunMode(opts.FullCleanup, opts.RunDate)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	cfg.ReportOnly = opts.ReportOnly

	if cfg.Report.OutputDir == "" {
		return nil, fmt.Errorf("config: report.output_dir is required")
	}
	if cfg.Report.FileName == "" {
		return nil, fmt.Errorf("config: report.file_name is required")
	}
	if !strings.HasSuffix(strings.ToLower(cfg.Report.FileName), ".csv") {
		return nil, fmt.Errorf("config: report.file_name %q must end in .csv", cfg.Report.FileName)
	}

	cfg.Notify.Recipients = normalizeRecipients(cfg.Notify.Recipients)
	if cfg.Notify.Enabled && cfg.Notify.SMTPAddr == "" {
		return nil, fmt.Errorf("config: notify.smtp_addr is required when notify.enabled is true")
	}
	if cfg.Notify.FromAddr == "" {
		cfg.Notify.FromAddr = defaultFromAddr
	}

	return &cfg, nil
}

// ReportPath joins the configured destination directory and file name.
func (c *Config) ReportPath() string {
	return filepath.Join(c.Report.OutputDir, c.Report.FileName)
}

func normalizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		// Accept both TOML arrays and a single comma-joined entry.
		for _, part := range strings.Split(r, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
