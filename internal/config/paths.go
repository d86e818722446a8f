package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dpcli/internal/ledger"
)

// Paths is the resolved file system layout for a run. It is the single
// source of truth for where inputs are read and artifacts are written.
type Paths struct {
	BaseDir string
	DataDir string
	OutDir  string
	LogsDir string

	// Inputs
	LedgerFile  string
	CatalogFile string

	// Well-known artifacts
	EnrichedLedgerCSV    string
	EnrichmentReportJSON string
	SummaryWorkbook      string
}

// ResolvePaths turns the configured layout into absolute paths. Relative
// entries resolve against BaseDir, which defaults to the working directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		base = wd
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	out := abs(c.Paths.OutDir)
	return &Paths{
		BaseDir:              base,
		DataDir:              abs(c.Paths.DataDir),
		OutDir:               out,
		LogsDir:              abs(c.Paths.LogsDir),
		LedgerFile:           abs(c.Paths.LedgerFile),
		CatalogFile:          abs(c.Paths.CatalogFile),
		EnrichedLedgerCSV:    filepath.Join(out, "enriched_ledger.csv"),
		EnrichmentReportJSON: filepath.Join(out, "enrichment_report.json"),
		SummaryWorkbook:      filepath.Join(out, "run_summary.xlsx"),
	}, nil
}

// EnsureDirectories creates the writable directories for a run.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FeatureTableCSV returns the per-level feature table artifact path.
func (p *Paths) FeatureTableCSV(level ledger.Level) string {
	return filepath.Join(p.OutDir, fmt.Sprintf("features_%s.csv", level))
}

// PredictionsCSV returns the per-level prediction table artifact path.
func (p *Paths) PredictionsCSV(level ledger.Level) string {
	return filepath.Join(p.OutDir, fmt.Sprintf("predictions_%s.csv", level))
}

// EntitySummaryCSV returns the per-level entity rollup artifact path.
func (p *Paths) EntitySummaryCSV(level ledger.Level) string {
	return filepath.Join(p.OutDir, fmt.Sprintf("summary_%s.csv", level))
}

// ResultJSON returns the per-level full-result artifact path.
func (p *Paths) ResultJSON(level ledger.Level) string {
	return filepath.Join(p.OutDir, fmt.Sprintf("result_%s.json", level))
}

// LogFile returns the resolved log file path.
func (p *Paths) LogFile(name string) string {
	return filepath.Join(p.LogsDir, name)
}
