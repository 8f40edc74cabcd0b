package report

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownGenerator generates Markdown format reports.
type MarkdownGenerator struct {
	chartGen *ChartGenerator
}

// NewMarkdownGenerator creates a new Markdown generator.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{
		chartGen: NewChartGenerator(),
	}
}

// Generate generates a Markdown report.
func (g *MarkdownGenerator) Generate(data *Data) (*Report, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var sb strings.Builder

	g.writeTitle(&sb, data)
	g.writeSummary(&sb, data)
	g.writeDurations(&sb, data)

	if data.Config.IncludeCharts && data.HasIterations() {
		g.writeChart(&sb, data)
	}
	if data.Config.IncludeIterations && data.HasIterations() {
		g.writeIterations(&sb, data)
	}

	g.writeCollectorMetrics(&sb, data)
	g.writeWarnings(&sb, data)
	g.writeFooter(&sb)

	return &Report{
		Format:      FormatMarkdown,
		Content:     []byte(sb.String()),
		GeneratedAt: time.Now(),
		RunID:       data.Record.ID,
	}, nil
}

// Format returns the format this generator produces.
func (g *MarkdownGenerator) Format() Format {
	return FormatMarkdown
}

func (g *MarkdownGenerator) writeTitle(sb *strings.Builder, data *Data) {
	title := data.Config.Title
	if title == "" {
		title = fmt.Sprintf("Benchmark Report - %s / %s", data.Record.Engine, data.Record.Workload)
	}
	sb.WriteString("# ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
}

func (g *MarkdownGenerator) writeSummary(sb *strings.Builder, data *Data) {
	rec := data.Record
	sb.WriteString("## Summary\n\n")

	status := "✅ Completed"
	if data.IsFailed() {
		status = "❌ Failed"
	}
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", status))
	sb.WriteString(fmt.Sprintf("- **Run ID**: `%s`\n", rec.ID))
	sb.WriteString(fmt.Sprintf("- **Engine**: %s\n", rec.Engine))
	sb.WriteString(fmt.Sprintf("- **Workload**: %s\n", rec.Workload))
	sb.WriteString(fmt.Sprintf("- **Target Cumulative**: %s\n", rec.Config.TargetCumulative))
	sb.WriteString(fmt.Sprintf("- **Min Iterations**: %d\n", rec.Config.MinIterations))
	sb.WriteString(fmt.Sprintf("- **Warm-up Repetitions**: %d\n", rec.Config.WarmupCount))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", FormatTimestamp(rec.StartedAt)))
	sb.WriteString(fmt.Sprintf("- **Completed**: %s\n", FormatTimestamp(rec.CompletedAt)))

	if data.IsFailed() {
		sb.WriteString(fmt.Sprintf("- **Error**: %s\n", rec.ErrorMessage))
	}
	sb.WriteString("\n")
}

func (g *MarkdownGenerator) writeDurations(sb *strings.Builder, data *Data) {
	sb.WriteString("## Durations\n\n")

	if !data.HasIterations() {
		sb.WriteString("*No measured iterations*\n\n")
		return
	}

	s := data.Summary
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Iterations** | %d |\n", s.N))
	sb.WriteString(fmt.Sprintf("| **Cumulative** | %.3f s |\n", s.Sum))
	sb.WriteString(fmt.Sprintf("| **Mean** | %.3f s |\n", s.Mean))
	sb.WriteString(fmt.Sprintf("| **Std Dev** | %.3f s |\n", s.StdDev))
	sb.WriteString(fmt.Sprintf("| **Std Err** | %.3f s |\n", s.StdErr))
	sb.WriteString(fmt.Sprintf("| **Min** | %.3f s |\n", s.Min))
	sb.WriteString(fmt.Sprintf("| **Max** | %.3f s |\n", s.Max))
	sb.WriteString(fmt.Sprintf("| **Total Wall** | %.3f s |\n", data.Record.Outcome.TotalWall.Seconds()))
	sb.WriteString("\n")
}

func (g *MarkdownGenerator) writeChart(sb *strings.Builder, data *Data) {
	durations := make([]float64, len(data.Record.Outcome.Iterations))
	for i, it := range data.Record.Outcome.Iterations {
		durations[i] = it.Duration.Seconds()
	}

	chart := g.chartGen.GenerateDurationBars(durations, data.Config.ChartWidth)
	if chart == "" {
		return
	}

	sb.WriteString("## Iteration Durations (s)\n\n")
	sb.WriteString("```\n")
	sb.WriteString(chart)
	sb.WriteString("```\n\n")
}

func (g *MarkdownGenerator) writeIterations(sb *strings.Builder, data *Data) {
	sb.WriteString("## Iterations\n\n")
	sb.WriteString("| # | Started | Completed | Duration (s) |\n")
	sb.WriteString("|---|---------|-----------|--------------|\n")

	for _, it := range data.Record.Outcome.Iterations {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.3f |\n",
			it.Index,
			it.StartedAt.Format("15:04:05.000"),
			it.CompletedAt.Format("15:04:05.000"),
			it.Duration.Seconds(),
		))
	}
	sb.WriteString("\n")
}

func (g *MarkdownGenerator) writeCollectorMetrics(sb *strings.Builder, data *Data) {
	if data.Perf == nil && data.Memory == nil {
		return
	}

	sb.WriteString("## Collector Metrics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")

	if data.Perf != nil {
		sb.WriteString(fmt.Sprintf("| **Instructions** | %d |\n", data.Perf.Instructions))
		sb.WriteString(fmt.Sprintf("| **Insn per Cycle** | %.2f |\n", data.Perf.InsnPerCycle))
		sb.WriteString(fmt.Sprintf("| **Branch Misses** | %d |\n", data.Perf.BranchMisses))
		sb.WriteString(fmt.Sprintf("| **LLC Load Misses** | %d |\n", data.Perf.LLCLoadMisses))
	}
	if data.Memory != nil {
		sb.WriteString(fmt.Sprintf("| **Memory Read** | %.2f MB/s |\n", data.Memory.ReadMBps))
		sb.WriteString(fmt.Sprintf("| **Memory Write** | %.2f MB/s |\n", data.Memory.WriteMBps))
		sb.WriteString(fmt.Sprintf("| **Memory Total** | %.2f MB/s |\n", data.Memory.TotalMBps))
	}
	sb.WriteString("\n")
}

func (g *MarkdownGenerator) writeWarnings(sb *strings.Builder, data *Data) {
	if data.Record.Outcome == nil || len(data.Record.Outcome.Warnings) == 0 {
		return
	}

	sb.WriteString("## Teardown Warnings\n\n")
	for _, w := range data.Record.Outcome.Warnings {
		sb.WriteString(fmt.Sprintf("- %s\n", w.String()))
	}
	sb.WriteString("\n")
}

func (g *MarkdownGenerator) writeFooter(sb *strings.Builder) {
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Generated by ade-bench at %s*\n", time.Now().Format(time.RFC1123)))
}
