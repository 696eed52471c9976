// Command validate checks a hospital cases CSV export for data integrity: the
// column set, region coverage and grouping, the reporting window, count
// presence, the fallback sentinel, and consistency between regions that share
// an NHS region. With -table-json it also cross-checks the export against a
// joined table fixture written by genmock.
//
// Usage:
//
//	go run ./cmd/hospitalization -out /tmp/hospital_cases.csv
//	go run ./cmd/validate -csv /tmp/hospital_cases.csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// csvRow is one exported row.
type csvRow struct {
	lineNum int
	region  string
	date    string
	cases   string
}

func main() {
	csvPath := flag.String("csv", "", "path to a hospital cases CSV export")
	tableJSON := flag.String("table-json", "", "optional joined table JSON fixture to cross-check against")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *tableJSON); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, tableJSONPath string) int {
	fmt.Println("=== Hospital Cases Integrity Validation ===")
	fmt.Println()

	header, rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	src := detectSource(rows)
	phases := validate(header, rows, src)

	if tableJSONPath != "" {
		table, err := loadTable(tableJSONPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load table JSON: %v\n", err)
			return 1
		}
		phases = append(phases, validateFixtureParity(rows, table))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d (%s), regions: %d\n", len(rows), src, countRegions(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validate runs every phase that needs only the export itself.
func validate(header []string, rows []csvRow, src domain.Source) []*phase {
	return []*phase{
		validateColumns(header),
		validateRegionCoverage(rows),
		validateReportingWindow(rows, src),
		validateCounts(rows, src),
		validateSharedNHSRegions(rows),
	}
}

// ── Data loading ──

func loadCSV(path string) ([]string, []csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file %s", path)
	}

	header := all[0]
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		rows = append(rows, csvRow{
			lineNum: i + 2,
			region:  get(row, domain.ColumnRegion),
			date:    get(row, domain.ColumnDate),
			cases:   get(row, domain.ColumnHospitalCases),
		})
	}
	return header, rows, nil
}

func loadTable(path string) (domain.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Table{}, err
	}
	var t domain.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Table{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// detectSource reports fallback when any count carries the sentinel.
func detectSource(rows []csvRow) domain.Source {
	for _, r := range rows {
		if r.cases == domain.MissingSentinel {
			return domain.SourceFallback
		}
	}
	return domain.SourceRemote
}

func countRegions(rows []csvRow) int {
	seen := make(map[string]bool)
	for _, r := range rows {
		seen[r.region] = true
	}
	return len(seen)
}

// ── Phase: columns ──

func validateColumns(header []string) *phase {
	p := &phase{name: "Columns (region, date, hospital_cases)"}
	want := []string{domain.ColumnRegion, domain.ColumnDate, domain.ColumnHospitalCases}
	if !slices.Equal(header, want) {
		p.errorf("header = %v, want %v", header, want)
	}
	for _, h := range header {
		if strings.EqualFold(strings.ReplaceAll(h, "_", ""), "nhsregion") {
			p.errorf("join key column %q leaked into output", h)
		}
	}
	return p
}

// ── Phase: region coverage ──

func validateRegionCoverage(rows []csvRow) *phase {
	p := &phase{name: "Region coverage and grouping"}

	var order []string
	for i, r := range rows {
		if i > 0 && rows[i-1].region == r.region {
			continue
		}
		if slices.Contains(order, r.region) {
			p.errorf("line %d: region %q appears in more than one group", r.lineNum, r.region)
			continue
		}
		order = append(order, r.region)
	}

	var want []string
	for _, m := range domain.RegionMappings() {
		want = append(want, m.Region)
	}
	for _, region := range want {
		if !slices.Contains(order, region) {
			p.errorf("region %q missing", region)
		}
	}
	for _, region := range order {
		if _, ok := domain.NHSRegionFor(region); !ok {
			p.errorf("unknown region %q", region)
		}
	}
	if p.passed() && !slices.Equal(order, want) {
		p.errorf("region order = %v, want mapping order %v", order, want)
	}
	return p
}

// ── Phase: reporting window ──

func validateReportingWindow(rows []csvRow, src domain.Source) *phase {
	p := &phase{name: "Reporting window (>= 2020-07-01)"}
	if src == domain.SourceFallback {
		return p
	}
	for _, r := range rows {
		if r.date == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, r.date)
		if err != nil {
			p.errorf("line %d: bad date %q", r.lineNum, r.date)
			continue
		}
		if d.Before(domain.ReportingStart) {
			p.errorf("line %d: %s %s is before the reporting start", r.lineNum, r.region, r.date)
		}
	}
	return p
}

// ── Phase: counts ──

func validateCounts(rows []csvRow, src domain.Source) *phase {
	if src == domain.SourceFallback {
		p := &phase{name: "Fallback sentinel on every row"}
		sentinel := domain.MissingSentinel
		for _, r := range rows {
			if r.cases != sentinel {
				p.errorf("line %d: %s hospital_cases = %q, want %q", r.lineNum, r.region, r.cases, sentinel)
			}
			if r.date != "" {
				p.errorf("line %d: %s has date %q in fallback output", r.lineNum, r.region, r.date)
			}
		}
		return p
	}

	p := &phase{name: "Counts present on matched rows"}
	for _, r := range rows {
		switch {
		case r.date == "" && r.cases != "":
			p.errorf("line %d: %s has a count %q without a date", r.lineNum, r.region, r.cases)
		case r.date != "" && r.cases == "":
			p.errorf("line %d: %s %s has a null count", r.lineNum, r.region, r.date)
		case r.date != "":
			if n, err := strconv.ParseInt(r.cases, 10, 64); err != nil || n < 0 {
				p.errorf("line %d: %s %s count %q is not a non-negative integer", r.lineNum, r.region, r.date, r.cases)
			}
		}
	}
	return p
}

// ── Phase: shared NHS regions ──

func validateSharedNHSRegions(rows []csvRow) *phase {
	p := &phase{name: "Shared NHS regions carry identical rows"}

	obs := make(map[string][]string)
	for _, r := range rows {
		obs[r.region] = append(obs[r.region], r.date+"|"+r.cases)
	}

	first := make(map[string]string)
	for _, m := range domain.RegionMappings() {
		ref, ok := first[m.NHSRegion]
		if !ok {
			first[m.NHSRegion] = m.Region
			continue
		}
		if !slices.Equal(obs[ref], obs[m.Region]) {
			p.errorf("%q and %q both map to %q but differ (%d vs %d rows)",
				ref, m.Region, m.NHSRegion, len(obs[ref]), len(obs[m.Region]))
		}
	}
	return p
}

// ── Phase: fixture parity ──

func validateFixtureParity(rows []csvRow, table domain.Table) *phase {
	p := &phase{name: "Parity with table fixture"}
	if len(rows) != len(table.Rows) {
		p.errorf("row count: CSV %d vs fixture %d", len(rows), len(table.Rows))
	}
	for i := range min(len(rows), len(table.Rows)) {
		got, want := rows[i], table.Rows[i]
		if got.region != want.Region || got.date != want.DateString() || got.cases != want.Cases.String() {
			p.errorf("line %d: CSV (%s, %s, %s) vs fixture (%s, %s, %s)",
				got.lineNum, got.region, got.date, got.cases,
				want.Region, want.DateString(), want.Cases.String())
		}
	}
	return p
}
