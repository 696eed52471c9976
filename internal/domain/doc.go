// Package domain models NHS-region hospitalization data and its mapping onto
// UK administrative regions.
//
// # Data Source
//
// Hospital case counts come from the UK coronavirus dashboard API
// (https://api.coronavirus.data.gov.uk/v2/data), queried with
// areaType=nhsRegion and metric=hospitalCases in CSV format. Each row carries
// the NHS region name (areaName), the report date and the number of patients
// in hospital on that date.
//
// # Regions
//
// Administrative regions (the ONS statistical regions plus the devolved
// nations) are mapped to NHS regions with a fixed 13-entry table. Several
// administrative regions share an NHS region:
//
//	Yorkshire and The Humber, North East  →  North East and Yorkshire
//	West Midlands, East Midlands          →  Midlands
//
// so those regions receive identical hospitalization rows after the join.
//
// # Filtering
//
// Remote records dated before 2020-07-01 are dropped, as are records with no
// hospitalCases value. Dates use the ISO calendar format 2006-01-02.
//
// # Fallback
//
// When the API cannot be reached, the dataset is replaced by one undated
// record per NHS region whose count is the string sentinel "missing". The
// join still produces one row per administrative region, so consumers see
// every region with a "missing" marker instead of an empty result.
//
// # Case counts
//
// [CaseCount] is tri-state: a known number, the "missing" sentinel, or null
// (no matching data). JSON renders these as a number, "missing" and null; CSV
// renders them as the number, "missing" and an empty field.
package domain
