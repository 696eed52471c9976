package coviddata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
)

// Source column names, matched case-insensitively.
const (
	colDate          = "date"
	colAreaName      = "areaname"
	colHospitalCases = "hospitalcases"
)

var requiredColumns = []string{colDate, colAreaName, colHospitalCases}

// ParseCSV reads dashboard CSV rows into hospital records. Empty
// hospitalCases fields become null counts; filtering happens in the domain.
// Any structural or value error wraps domain.ErrMalformedSource.
func ParseCSV(r io.Reader) ([]domain.HospitalRecord, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	// Skip UTF-8 BOM if present
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty response", domain.ErrMalformedSource)
		}
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrMalformedSource, err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := colIdx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrMalformedSource, name)
		}
	}
	dateIdx, areaIdx, casesIdx := colIdx[colDate], colIdx[colAreaName], colIdx[colHospitalCases]
	width := max(dateIdx, areaIdx, casesIdx) + 1

	var records []domain.HospitalRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", domain.ErrMalformedSource, line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < width {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields, got %d",
				domain.ErrMalformedSource, line, width, len(row))
		}

		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: date %q: %w", domain.ErrMalformedSource, line, row[dateIdx], err)
		}
		cases, err := parseCases(row[casesIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: hospitalCases %q: %w", domain.ErrMalformedSource, line, row[casesIdx], err)
		}

		records = append(records, domain.HospitalRecord{
			NHSRegion: strings.TrimSpace(row[areaIdx]),
			Date:      &date,
			Cases:     cases,
		})
	}

	return records, nil
}

// parseCases accepts integers and integral floats ("1234.0"). Empty is null.
func parseCases(s string) (domain.CaseCount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NullCases(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return domain.Cases(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.CaseCount{}, err
	}
	if math.IsNaN(f) {
		return domain.NullCases(), nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return domain.CaseCount{}, fmt.Errorf("not a whole number")
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return domain.CaseCount{}, fmt.Errorf("out of range")
	}
	return domain.Cases(int64(f)), nil
}
