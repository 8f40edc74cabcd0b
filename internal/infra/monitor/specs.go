package monitor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"syscall"
)

// Output file names the downstream analysis tooling globs for.
const (
	PerfStatFile   = "perf_stats_metrics.txt"
	PerfSystemFile = "perf_system_metrics.txt"
	PCMMemoryFile  = "pcm_memory.txt"
	IostatFile     = "iostat_metrics.txt"
	CPULoadFile    = "cpu_load.txt"
)

// PhaseSpecs returns the collectors that run for the whole measured phase:
// process-level and system-level performance counters and the memory
// bandwidth collector. enginePID is the engine process the process-level
// counters attach to; when it is zero or negative (engine not local, as in
// driver mode against a remote host) the process-level counters are omitted.
// outputDir receives the collector files.
func PhaseSpecs(enginePID int, outputDir string) []Spec {
	specs := make([]Spec, 0, 3)
	if enginePID > 0 {
		specs = append(specs, PerfStat(enginePID, filepath.Join(outputDir, PerfStatFile)))
	}
	specs = append(specs,
		PerfSystem(filepath.Join(outputDir, PerfSystemFile)),
		PCMMemory(filepath.Join(outputDir, PCMMemoryFile)),
	)
	return specs
}

// IterationSpecs returns the short-lived samplers whose lifetime is scoped to
// exactly one iteration: the I/O and CPU utilization samplers.
func IterationSpecs(outputDir string) []Spec {
	return []Spec{
		Iostat(filepath.Join(outputDir, IostatFile)),
		SarCPU(filepath.Join(outputDir, CPULoadFile)),
	}
}

// PerfStat attaches hardware performance counters to the engine process.
// perf buffers its statistics and only writes them on SIGINT.
func PerfStat(pid int, outputPath string) Spec {
	return Spec{
		Name:    "perf-stat",
		Command: "perf",
		Args: []string{
			"stat",
			"-e", "instructions,cycles,branch-misses,LLC-load-misses",
			"-p", strconv.Itoa(pid),
		},
		OutputPath: outputPath,
		StopSignal: syscall.SIGINT,
	}
}

// PerfSystem collects the same counters system-wide.
func PerfSystem(outputPath string) Spec {
	return Spec{
		Name:    "perf-system",
		Command: "perf",
		Args: []string{
			"stat",
			"-a",
			"-e", "instructions,cycles,branch-misses,LLC-load-misses",
		},
		OutputPath: outputPath,
		StopSignal: syscall.SIGINT,
	}
}

// PCMMemory collects socket memory bandwidth. pcm-memory also flushes on
// interrupt.
func PCMMemory(outputPath string) Spec {
	return Spec{
		Name:       "pcm-memory",
		Command:    "pcm-memory",
		Args:       []string{"1"},
		OutputPath: outputPath,
		StopSignal: syscall.SIGINT,
	}
}

// Iostat samples extended device utilization once a second.
func Iostat(outputPath string) Spec {
	return Spec{
		Name:       "iostat",
		Command:    "iostat",
		Args:       []string{"-x", "-t", "1"},
		OutputPath: outputPath,
		StopSignal: syscall.SIGTERM,
	}
}

// SarCPU samples aggregate CPU utilization once a second.
func SarCPU(outputPath string) Spec {
	return Spec{
		Name:       "sar-cpu",
		Command:    "sar",
		Args:       []string{"-u", "1"},
		OutputPath: outputPath,
		StopSignal: syscall.SIGTERM,
	}
}

// IterationDir returns the artifact directory for one iteration, numbered
// from 1 the way the analysis tooling expects.
func IterationDir(outputDir string, iteration int) string {
	return filepath.Join(outputDir, fmt.Sprintf("Iteration%d", iteration))
}
