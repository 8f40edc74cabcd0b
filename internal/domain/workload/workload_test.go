// Package workload provides unit tests for workload descriptors.
package workload

import (
	"os"
	"path/filepath"
	"testing"
)

// TestWorkload_Validate tests workload validation.
func TestWorkload_Validate(t *testing.T) {
	tests := []struct {
		name     string
		workload Workload
		wantErr  bool
	}{
		{"valid query", Workload{Name: "q1", Kind: KindQuery, SQL: "SELECT 1;"}, false},
		{"valid load", Workload{Name: "l1", Kind: KindLoad, SQL: "COPY INTO t FROM 'f';"}, false},
		{"missing name", Workload{Kind: KindQuery, SQL: "SELECT 1;"}, true},
		{"empty sql", Workload{Name: "q1", Kind: KindQuery, SQL: "   \n"}, true},
		{"unknown kind", Workload{Name: "q1", Kind: Kind("other"), SQL: "SELECT 1;"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.workload.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestFromFile tests reading a query workload from a .sql file.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q22.sql")
	if err := os.WriteFile(path, []byte("SELECT count(*) FROM lineorder;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if w.Name != "q22" {
		t.Errorf("Name = %q, want q22", w.Name)
	}
	if w.Kind != KindQuery {
		t.Errorf("Kind = %q, want %q", w.Kind, KindQuery)
	}
	if w.SQL != "SELECT count(*) FROM lineorder;\n" {
		t.Errorf("SQL = %q", w.SQL)
	}
}

// TestFromFile_Empty tests that an empty file is rejected.
func TestFromFile_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.sql")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := FromFile(path); err == nil {
		t.Error("FromFile() expected error for empty workload")
	}
}

// TestFromDir tests reading a directory of workloads in name order.
func TestFromDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"q2.sql":     "SELECT 2;",
		"q1.sql":     "SELECT 1;",
		"readme.txt": "not sql",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	workloads, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir() error = %v", err)
	}
	if len(workloads) != 2 {
		t.Fatalf("len = %d, want 2", len(workloads))
	}
	if workloads[0].Name != "q1" || workloads[1].Name != "q2" {
		t.Errorf("order = [%s %s], want [q1 q2]", workloads[0].Name, workloads[1].Name)
	}
}

// TestFromDir_Empty tests that a directory without workloads errors.
func TestFromDir_Empty(t *testing.T) {
	if _, err := FromDir(t.TempDir()); err == nil {
		t.Error("FromDir() expected error for empty directory")
	}
}

// TestNewLoad tests data-load statement construction per file format.
func TestNewLoad(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		path    string
		format  FileFormat
		wantSQL string
		wantErr bool
	}{
		{
			name:    "tbl format",
			table:   "lineorder",
			path:    "/data/SF10/lineorder.tbl",
			format:  FormatTbl,
			wantSQL: "COPY INTO lineorder FROM '/data/SF10/lineorder.tbl' USING DELIMITERS '|', '\\n';",
		},
		{
			name:    "csv format",
			table:   "customer",
			path:    "/data/customer.csv",
			format:  FormatCSV,
			wantSQL: "COPY INTO customer FROM '/data/customer.csv' USING DELIMITERS ',', '\\n';",
		},
		{
			name:    "parquet has no delimiter clause",
			table:   "part",
			path:    "/data/part.parquet",
			format:  FormatParquet,
			wantSQL: "COPY INTO part FROM '/data/part.parquet';",
		},
		{name: "missing table", path: "/data/x.tbl", format: FormatTbl, wantErr: true},
		{name: "missing path", table: "t", format: FormatTbl, wantErr: true},
		{name: "bad format", table: "t", path: "/x", format: FileFormat("xml"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewLoad(tt.table, tt.path, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLoad() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if w.SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", w.SQL, tt.wantSQL)
			}
			if w.Kind != KindLoad {
				t.Errorf("Kind = %q, want %q", w.Kind, KindLoad)
			}
		})
	}
}

// TestScaleFactor tests scale factor formatting and validation.
func TestScaleFactor(t *testing.T) {
	if got := ScaleFactor(10).String(); got != "SF10" {
		t.Errorf("String() = %q, want SF10", got)
	}
	if err := ScaleFactor(1).Validate(); err != nil {
		t.Errorf("Validate(1) error = %v", err)
	}
	if err := ScaleFactor(0).Validate(); err == nil {
		t.Error("Validate(0) expected error")
	}
}

// TestIsSentinelLine tests sentinel detection against decorated client output.
func TestIsSentinelLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"bare tag", SentinelTag, true},
		{"bordered result row", "| " + SentinelTag + " |", true},
		{"result line", "42 rows", false},
		{"empty line", "", false},
		{"partial tag", "__ADE_BENCH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSentinelLine(tt.line); got != tt.want {
				t.Errorf("IsSentinelLine(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}
