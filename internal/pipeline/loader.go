package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
)

// Fetcher downloads raw NHS-region hospital case records.
type Fetcher interface {
	FetchHospitalCases(ctx context.Context) ([]domain.HospitalRecord, error)
	URL() string
}

// Loader fetches hospital cases, falls back to placeholder data when the
// source is unreachable, and joins the result onto the region mapping.
type Loader struct {
	fetcher  Fetcher
	mappings []domain.RegionMapping
	logger   *slog.Logger
}

// NewLoader creates a Loader over the fixed administrative-to-NHS region mapping.
func NewLoader(f Fetcher, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher:  f,
		mappings: domain.RegionMappings(),
		logger:   logger,
	}
}

// Fetch makes one attempt at the source. Source-unavailable errors are
// recovered with the fallback dataset; any other error is returned. A fetch
// cut short by ctx is never treated as the source being unavailable.
func (l *Loader) Fetch(ctx context.Context) (domain.Dataset, error) {
	records, err := l.fetcher.FetchHospitalCases(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Dataset{}, fmt.Errorf("fetch hospital cases: %w", ctxErr)
		}
		if errors.Is(err, domain.ErrSourceUnavailable) {
			l.logger.Error("hospitalization source unavailable, using fallback data",
				"error", err,
				"url", l.fetcher.URL(),
			)
			return domain.FallbackDataset(err), nil
		}
		return domain.Dataset{}, fmt.Errorf("fetch hospital cases: %w", err)
	}

	ds := domain.RemoteDataset(records)
	l.logger.Debug("hospitalization data filtered",
		"fetched", len(records),
		"kept", len(ds.Records),
		"from", domain.ReportingStart.Format(domain.DateLayout),
	)
	return ds, nil
}

// Load returns the administrative-region hospital cases table.
func (l *Loader) Load(ctx context.Context) (domain.Table, error) {
	ds, err := l.Fetch(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	return domain.JoinRegions(l.mappings, ds), nil
}
