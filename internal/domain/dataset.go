package domain

import (
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable marks a fetch that failed before any data was
	// received: transport errors and non-2xx responses. Loaders recover from
	// it with the fallback dataset.
	ErrSourceUnavailable = errors.New("hospitalization source unavailable")

	// ErrMalformedSource marks data that was received but could not be
	// parsed. It is never recovered.
	ErrMalformedSource = errors.New("malformed hospitalization data")
)

// DateLayout is the calendar date format used by the source and all outputs.
const DateLayout = "2006-01-02"

// ReportingStart is the first date kept from the remote dataset.
var ReportingStart = time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC)

// HospitalRecord is one NHS-region observation of patients in hospital.
// Date is nil for fallback records.
type HospitalRecord struct {
	NHSRegion string
	Date      *time.Time
	Cases     CaseCount
}

// Source identifies where a dataset came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Dataset is the result of a single fetch attempt: either the filtered
// remote records or the fallback placeholders, never both.
type Dataset struct {
	Source  Source
	Records []HospitalRecord

	// FetchErr holds the error that caused a fallback. Nil for remote data.
	FetchErr error
}

// RemoteDataset keeps the records dated on or after ReportingStart that carry
// a case count.
func RemoteDataset(records []HospitalRecord) Dataset {
	return Dataset{
		Source:  SourceRemote,
		Records: FilterRecords(records, ReportingStart),
	}
}

// FallbackDataset returns the placeholder dataset: one undated record per NHS
// region with the "missing" sentinel as its count.
func FallbackDataset(cause error) Dataset {
	records := make([]HospitalRecord, len(fallbackRecord))
	copy(records, fallbackRecord)
	return Dataset{
		Source:   SourceFallback,
		Records:  records,
		FetchErr: cause,
	}
}

// IsFallback reports whether the dataset holds placeholder records.
func (d Dataset) IsFallback() bool { return d.Source == SourceFallback }

// FilterRecords drops records dated before from and records with a null count.
func FilterRecords(records []HospitalRecord, from time.Time) []HospitalRecord {
	out := make([]HospitalRecord, 0, len(records))
	for _, r := range records {
		if r.Date == nil || r.Date.Before(from) {
			continue
		}
		if r.Cases.IsNull() {
			continue
		}
		out = append(out, r)
	}
	return out
}

func buildFallbackRecords(regions []string) []HospitalRecord {
	out := make([]HospitalRecord, 0, len(regions))
	for _, nhs := range regions {
		out = append(out, HospitalRecord{NHSRegion: nhs, Cases: MissingCases()})
	}
	return out
}
