package workload

import "strings"

// SentinelTag is the marker value the worker echoes back once a submitted
// workload has fully executed. The tag is chosen so no benchmark result row
// can collide with it.
const SentinelTag = "__ADE_BENCH_DONE__"

// SentinelStatement is appended after every workload submission so the
// receiver has a deterministic boundary marker in the output stream.
const SentinelStatement = "SELECT '" + SentinelTag + "';"

// IsSentinelLine reports whether an output line is the sentinel row.
// Console clients decorate result rows with table borders, so a containment
// check is used rather than full-line equality.
func IsSentinelLine(line string) bool {
	return strings.Contains(line, SentinelTag)
}
