package report

import (
	"fmt"
	"strings"
)

// ChartGenerator generates text-based charts for reports.
type ChartGenerator struct{}

// NewChartGenerator creates a new chart generator.
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

// GenerateDurationBars generates a horizontal bar chart of per-iteration
// durations in seconds.
func (g *ChartGenerator) GenerateDurationBars(durations []float64, width int) string {
	if len(durations) == 0 {
		return ""
	}

	labels := make([]string, len(durations))
	for i := range durations {
		labels[i] = fmt.Sprintf("iter %d", i+1)
	}
	return g.GenerateBarChart(labels, durations, width)
}

// GenerateBarChart generates a simple horizontal bar chart.
func (g *ChartGenerator) GenerateBarChart(labels []string, values []float64, width int) string {
	if len(labels) != len(values) || len(labels) == 0 {
		return ""
	}

	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	var sb strings.Builder
	barWidth := width - maxLabelLen - 10
	if barWidth < 10 {
		barWidth = 10
	}

	for i, label := range labels {
		value := values[i]
		barLength := int(value / max * float64(barWidth))
		bar := strings.Repeat("█", barLength)
		sb.WriteString(fmt.Sprintf("%*s │%-*s %.2f\n", maxLabelLen, label, barWidth, bar, value))
	}

	return sb.String()
}
