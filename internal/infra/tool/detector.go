// Package tool provides detection of the external binaries a benchmark run
// depends on: the measurement collectors and the engine console client.
package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Tool identifies one external binary.
type Tool string

const (
	ToolPerf      Tool = "perf"
	ToolPCMMemory Tool = "pcm-memory"
	ToolIostat    Tool = "iostat"
	ToolSar       Tool = "sar"
)

// CollectorTools are the binaries the monitor set launches.
var CollectorTools = []Tool{ToolPerf, ToolPCMMemory, ToolIostat, ToolSar}

// Detection is the result of probing one tool.
type Detection struct {
	Tool    Tool   `json:"tool"`
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
}

// Detector probes for tool availability.
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect resolves the tool on PATH and probes its version. A missing tool is
// an error so that a run can fail before any measurement starts.
func (d *Detector) Detect(ctx context.Context, tool Tool) (*Detection, error) {
	path, err := exec.LookPath(string(tool))
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH", tool)
	}

	det := &Detection{Tool: tool, Path: path}
	if version, err := d.probeVersion(ctx, tool, path); err == nil {
		det.Version = version
	}
	return det, nil
}

// DetectAll probes each tool and returns every missing one in a single
// error, so the operator sees the complete installation gap at once.
func (d *Detector) DetectAll(ctx context.Context, tools []Tool) ([]Detection, error) {
	var (
		detections []Detection
		missing    []string
	)
	for _, t := range tools {
		det, err := d.Detect(ctx, t)
		if err != nil {
			missing = append(missing, string(t))
			continue
		}
		detections = append(detections, *det)
	}
	if len(missing) > 0 {
		return detections, fmt.Errorf("missing collector tools: %s", strings.Join(missing, ", "))
	}
	return detections, nil
}

func (d *Detector) probeVersion(ctx context.Context, tool Tool, path string) (string, error) {
	args := []string{"--version"}
	if tool == ToolSar {
		args = []string{"-V"}
	}

	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		return "", err
	}

	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return strings.TrimSpace(line), nil
}
