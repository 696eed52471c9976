// Package export renders a hospital cases table as CSV, JSON, or Parquet.
//
// CSV output has the columns region, date, hospital_cases. Null dates and
// counts are empty fields and the fallback sentinel is written verbatim as
// "missing". JSON output is the domain.Table encoding. Parquet output uses
// optional string columns, so nulls stay null.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, json or parquet)", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Write encodes the table in the given format.
func Write(w io.Writer, f Format, t domain.Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatParquet:
		return WriteParquet(w, t)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, t domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Rows {
		if err := cw.Write([]string{r.Region, r.DateString(), r.Cases.String()}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the table as indented JSON.
func WriteJSON(w io.Writer, t domain.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	return nil
}

// ParquetRow mirrors the Parquet schema for one table row.
type ParquetRow struct {
	Region        string  `parquet:"region"`
	Date          *string `parquet:"date,optional"`
	HospitalCases *string `parquet:"hospital_cases,optional"`
}

// ParquetRows converts table rows to their Parquet representation.
func ParquetRows(t domain.Table) []ParquetRow {
	out := make([]ParquetRow, len(t.Rows))
	for i, r := range t.Rows {
		out[i].Region = r.Region
		if r.Date != nil {
			d := r.DateString()
			out[i].Date = &d
		}
		if !r.Cases.IsNull() {
			c := r.Cases.String()
			out[i].HospitalCases = &c
		}
	}
	return out
}

// WriteParquet writes the table as a zstd-compressed Parquet file.
func WriteParquet(w io.Writer, t domain.Table) error {
	pw := parquet.NewGenericWriter[ParquetRow](w,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("nhs-hospitalization-etl", "1.0", ""),
	)
	if _, err := pw.Write(ParquetRows(t)); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
