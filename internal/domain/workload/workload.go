// Package workload provides workload descriptors for benchmark runs: SQL
// query workloads read from files, data-load workloads built per file format,
// and the sentinel protocol that marks the end of one submitted workload.
package workload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind distinguishes query workloads from data-load workloads.
type Kind string

const (
	KindQuery Kind = "query"
	KindLoad  Kind = "load"
)

// Workload is one unit of work submitted to the worker per iteration. The SQL
// text is opaque to the controller; only the worker's engine interprets it.
type Workload struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	SQL  string `json:"sql"`
}

// Validate validates the workload descriptor.
func (w Workload) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workload name is required")
	}
	if strings.TrimSpace(w.SQL) == "" {
		return fmt.Errorf("workload %s has no SQL text", w.Name)
	}
	switch w.Kind {
	case KindQuery, KindLoad:
		return nil
	default:
		return fmt.Errorf("unknown workload kind: %s", w.Kind)
	}
}

// FromFile reads a query workload from a .sql file. The workload name is the
// file name without extension.
func FromFile(path string) (Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workload{}, fmt.Errorf("read workload %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	w := Workload{Name: name, Kind: KindQuery, SQL: string(data)}
	if err := w.Validate(); err != nil {
		return Workload{}, err
	}
	return w, nil
}

// FromDir reads every .sql file in dir as a query workload, ordered by file
// name so query sequences run in a stable order.
func FromDir(dir string) ([]Workload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workload dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no .sql workloads in %s", dir)
	}

	workloads := make([]Workload, 0, len(paths))
	for _, p := range paths {
		w, err := FromFile(p)
		if err != nil {
			return nil, err
		}
		workloads = append(workloads, w)
	}
	return workloads, nil
}
