package workload

import (
	"fmt"
	"strings"
)

// FileFormat is the on-disk format of a data file to be loaded.
type FileFormat string

const (
	FormatTbl     FileFormat = "tbl"
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
)

// Validate checks that the file format is supported.
func (f FileFormat) Validate() error {
	switch f {
	case FormatTbl, FormatCSV, FormatParquet:
		return nil
	default:
		return fmt.Errorf("unsupported file format: %s", f)
	}
}

// Delimiter returns the column delimiter for delimited formats, or an empty
// string for self-describing formats.
func (f FileFormat) Delimiter() string {
	switch f {
	case FormatTbl:
		return "|"
	case FormatCSV:
		return ","
	default:
		return ""
	}
}

// ScaleFactor governs the size of the dataset the engine operates on.
type ScaleFactor int

func (sf ScaleFactor) String() string {
	return fmt.Sprintf("SF%d", int(sf))
}

// Validate checks the scale factor is positive.
func (sf ScaleFactor) Validate() error {
	if sf <= 0 {
		return fmt.Errorf("scale factor must be positive, got %d", int(sf))
	}
	return nil
}

// NewLoad builds a data-load workload that bulk-loads the file at path into
// table. Delimited formats carry an explicit delimiter clause; parquet files
// describe their own layout.
func NewLoad(table, path string, format FileFormat) (Workload, error) {
	if table == "" {
		return Workload{}, fmt.Errorf("load table is required")
	}
	if path == "" {
		return Workload{}, fmt.Errorf("load path is required")
	}
	if err := format.Validate(); err != nil {
		return Workload{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "COPY INTO %s FROM '%s'", table, path)
	if d := format.Delimiter(); d != "" {
		fmt.Fprintf(&sb, " USING DELIMITERS '%s', '\\n'", d)
	}
	sb.WriteString(";")

	return Workload{
		Name: fmt.Sprintf("load-%s-%s", table, format),
		Kind: KindLoad,
		SQL:  sb.String(),
	}, nil
}
