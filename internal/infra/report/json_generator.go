package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/stats"
	"github.com/mtheof04/Ade-Scripts/internal/infra/monitor"
)

// JSONGenerator generates JSON format reports.
type JSONGenerator struct{}

// NewJSONGenerator creates a new JSON generator.
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// jsonReport is the serialized report shape.
type jsonReport struct {
	RunID       string                   `json:"run_id"`
	Engine      string                   `json:"engine"`
	Workload    string                   `json:"workload"`
	State       string                   `json:"state"`
	Config      run.Config               `json:"config"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Summary     stats.Summary            `json:"summary"`
	Outcome     *run.Outcome             `json:"outcome,omitempty"`
	Perf        *monitor.PerfMetrics     `json:"perf,omitempty"`
	Memory      *monitor.MemoryBandwidth `json:"memory,omitempty"`
	Error       string                   `json:"error,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Generate generates a JSON report.
func (g *JSONGenerator) Generate(data *Data) (*Report, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	rec := data.Record
	rep := jsonReport{
		RunID:       rec.ID,
		Engine:      rec.Engine,
		Workload:    rec.Workload,
		State:       string(rec.State),
		Config:      rec.Config,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Summary:     data.Summary,
		Outcome:     rec.Outcome,
		Perf:        data.Perf,
		Memory:      data.Memory,
		Error:       rec.ErrorMessage,
		GeneratedAt: now,
	}

	content, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	return &Report{
		Format:      FormatJSON,
		Content:     content,
		GeneratedAt: now,
		RunID:       rec.ID,
	}, nil
}

// Format returns the format this generator produces.
func (g *JSONGenerator) Format() Format {
	return FormatJSON
}
