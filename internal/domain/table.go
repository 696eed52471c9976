package domain

import (
	"encoding/json"
	"time"
)

// Column names of a joined table, in output order.
const (
	ColumnRegion        = "region"
	ColumnDate          = "date"
	ColumnHospitalCases = "hospital_cases"
)

// Row is one (administrative region, date) observation. Date is nil when the
// region had no matching NHS-region data or the data came from the fallback.
type Row struct {
	Region string
	Date   *time.Time
	Cases  CaseCount
}

// DateString formats the row date, or returns "" when it is null.
func (r Row) DateString() string {
	if r.Date == nil {
		return ""
	}
	return r.Date.Format(DateLayout)
}

type rowJSON struct {
	Region string    `json:"region"`
	Date   *string   `json:"date"`
	Cases  CaseCount `json:"hospital_cases"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{Region: r.Region, Cases: r.Cases}
	if r.Date != nil {
		d := r.DateString()
		out.Date = &d
	}
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var in rowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Region = in.Region
	r.Cases = in.Cases
	r.Date = nil
	if in.Date != nil {
		d, err := time.Parse(DateLayout, *in.Date)
		if err != nil {
			return err
		}
		r.Date = &d
	}
	return nil
}

// Table is the joined administrative-region hospitalization result.
type Table struct {
	Rows        []Row     `json:"rows"`
	Source      Source    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Columns returns the output column names.
func (t Table) Columns() []string {
	return []string{ColumnRegion, ColumnDate, ColumnHospitalCases}
}

// Regions returns the administrative regions present, in row order.
func (t Table) Regions() []string {
	var out []string
	for i, r := range t.Rows {
		if i > 0 && t.Rows[i-1].Region == r.Region {
			continue
		}
		out = append(out, r.Region)
	}
	return out
}

// ForRegion returns the rows for one administrative region.
func (t Table) ForRegion(region string) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.Region == region {
			out = append(out, r)
		}
	}
	return out
}
