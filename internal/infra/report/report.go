// Package report renders benchmark run reports from recorded iteration
// results and collector metrics.
package report

import (
	"fmt"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/stats"
	"github.com/mtheof04/Ade-Scripts/internal/infra/monitor"
)

// Format represents the output format for a report.
type Format string

const (
	// FormatMarkdown generates Markdown format reports.
	FormatMarkdown Format = "markdown"
	// FormatJSON generates JSON format reports.
	FormatJSON Format = "json"
)

func (f Format) String() string {
	return string(f)
}

// Validate checks if the format is valid.
func (f Format) Validate() error {
	switch f {
	case FormatMarkdown, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid report format: %s", f)
	}
}

// FileExtension returns the file extension for this format.
func (f Format) FileExtension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Config controls what a generated report includes.
type Config struct {
	Format Format

	// IncludeCharts enables the text duration chart.
	IncludeCharts bool

	// IncludeIterations includes the per-iteration table.
	IncludeIterations bool

	// ChartWidth is the width for text-based charts.
	ChartWidth int

	// Title overrides the default report title.
	Title string
}

// DefaultConfig returns a default report configuration.
func DefaultConfig(format Format) *Config {
	return &Config{
		Format:            format,
		IncludeCharts:     true,
		IncludeIterations: true,
		ChartWidth:        60,
	}
}

// Data is everything a generator needs to render one run.
type Data struct {
	Record  *run.Record
	Summary stats.Summary

	// Perf holds parsed perf stat counters for the measured phase, when the
	// perf collector ran.
	Perf *monitor.PerfMetrics

	// Memory holds parsed memory bandwidth figures, when pcm-memory ran.
	Memory *monitor.MemoryBandwidth

	Config *Config
}

// NewData builds report data from a run record, deriving the duration
// summary from its recorded iterations.
func NewData(rec *run.Record, cfg *Config) *Data {
	d := &Data{Record: rec, Config: cfg}
	if rec.Outcome != nil {
		d.Summary = stats.FromIterations(rec.Outcome.Iterations)
	}
	return d
}

// Validate validates the report data.
func (d *Data) Validate() error {
	if d.Record == nil {
		return fmt.Errorf("run record is required")
	}
	if d.Config == nil {
		return fmt.Errorf("config is required")
	}
	return d.Config.Format.Validate()
}

// HasIterations reports whether the run produced measured iterations.
func (d *Data) HasIterations() bool {
	return d.Record.Outcome != nil && len(d.Record.Outcome.Iterations) > 0
}

// IsFailed reports whether the run ended in failure.
func (d *Data) IsFailed() bool {
	return d.Record.ErrorMessage != ""
}

// Report is a generated report.
type Report struct {
	Format      Format
	Content     []byte
	GeneratedAt time.Time
	RunID       string
}

// Generator is the interface for report generators.
type Generator interface {
	Generate(data *Data) (*Report, error)
	Format() Format
}

// FormatTimestamp returns the formatted timestamp for a time pointer.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(time.RFC3339)
}
