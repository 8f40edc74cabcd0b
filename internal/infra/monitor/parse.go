package monitor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// PerfMetrics holds the counters extracted from perf stat output.
type PerfMetrics struct {
	Instructions  int64   `json:"instructions"`
	InsnPerCycle  float64 `json:"insn_per_cycle"`
	BranchMisses  int64   `json:"branch_misses"`
	LLCLoadMisses int64   `json:"llc_load_misses"`
}

var (
	// perf writes terminal escape sequences even when redirected.
	ansiEscapePattern = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

	insnPerCyclePattern  = regexp.MustCompile(`(\d+\.\d+)\s+insn per cycle`)
	instructionsPattern  = regexp.MustCompile(`(\d+)\s+instructions`)
	branchMissesPattern  = regexp.MustCompile(`(\d+)\s+branch-misses`)
	llcLoadMissesPattern = regexp.MustCompile(`(\d+)\s+llc-load-misses`)
)

// ParsePerfStat extracts the counter values from perf stat output. Counter
// values arrive comma-grouped and case varies between perf versions, so lines
// are normalized before matching.
func ParsePerfStat(r io.Reader) (*PerfMetrics, error) {
	m := &PerfMetrics{}
	found := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := ansiEscapePattern.ReplaceAllString(sc.Text(), "")

		if match := insnPerCyclePattern.FindStringSubmatch(line); len(match) > 1 {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				m.InsnPerCycle = v
				found = true
			}
		}

		normalized := strings.ToLower(strings.ReplaceAll(line, ",", ""))
		if match := instructionsPattern.FindStringSubmatch(normalized); len(match) > 1 {
			if v, err := strconv.ParseInt(match[1], 10, 64); err == nil {
				m.Instructions = v
				found = true
			}
		}
		if match := branchMissesPattern.FindStringSubmatch(normalized); len(match) > 1 {
			if v, err := strconv.ParseInt(match[1], 10, 64); err == nil {
				m.BranchMisses = v
				found = true
			}
		}
		if match := llcLoadMissesPattern.FindStringSubmatch(normalized); len(match) > 1 {
			if v, err := strconv.ParseInt(match[1], 10, 64); err == nil {
				m.LLCLoadMisses = v
				found = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan perf output: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no perf counters found in output")
	}
	return m, nil
}

// ParsePerfStatFile parses a perf stat output file.
func ParsePerfStatFile(path string) (*PerfMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParsePerfStat(f)
}

// MemoryBandwidth holds throughput readings from pcm-memory output, in MB/s.
type MemoryBandwidth struct {
	ReadMBps  float64 `json:"read_mbps"`
	WriteMBps float64 `json:"write_mbps"`
	TotalMBps float64 `json:"total_mbps"`
	Samples   int     `json:"samples"`
}

var (
	pcmReadPattern  = regexp.MustCompile(`System Read Throughput\(MB/s\)\s*:\s*(\d+\.?\d*)`)
	pcmWritePattern = regexp.MustCompile(`System Write Throughput\(MB/s\)\s*:\s*(\d+\.?\d*)`)
	pcmTotalPattern = regexp.MustCompile(`System Memory Throughput\(MB/s\)\s*:\s*(\d+\.?\d*)`)
)

// ParsePCMMemory averages the per-sample system throughput lines of
// pcm-memory output.
func ParsePCMMemory(r io.Reader) (*MemoryBandwidth, error) {
	var readSum, writeSum, totalSum float64
	var n int

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if match := pcmReadPattern.FindStringSubmatch(line); len(match) > 1 {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				readSum += v
			}
		}
		if match := pcmWritePattern.FindStringSubmatch(line); len(match) > 1 {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				writeSum += v
			}
		}
		if match := pcmTotalPattern.FindStringSubmatch(line); len(match) > 1 {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				totalSum += v
				n++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan pcm output: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no throughput samples found in pcm output")
	}

	return &MemoryBandwidth{
		ReadMBps:  readSum / float64(n),
		WriteMBps: writeSum / float64(n),
		TotalMBps: totalSum / float64(n),
		Samples:   n,
	}, nil
}

// ParsePCMMemoryFile parses a pcm-memory output file.
func ParsePCMMemoryFile(path string) (*MemoryBandwidth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParsePCMMemory(f)
}
