package coviddata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	"golang.org/x/text/encoding/charmap"
)

// Client fetches hospital case counts from the UK coronavirus dashboard API.
// It implements pipeline.Fetcher.
type Client struct {
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a dashboard client for the given CSV endpoint.
func NewClient(url string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// URL returns the endpoint this client reads from.
func (c *Client) URL() string { return c.url }

// FetchHospitalCases downloads and parses the CSV dataset. Transport failures
// and non-2xx responses wrap domain.ErrSourceUnavailable; parse failures wrap
// domain.ErrMalformedSource. When ctx ends first its error is returned as is.
func (c *Client) FetchHospitalCases(ctx context.Context) ([]domain.HospitalRecord, error) {
	start := time.Now()
	body, err := c.download(ctx)
	c.metrics.SourceFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "unavailable"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		c.metrics.SourceFetches.WithLabelValues(outcome).Inc()
		return nil, err
	}

	records, err := ParseCSV(decodeBody(body))
	if err != nil {
		c.metrics.SourceFetches.WithLabelValues("malformed").Inc()
		return nil, err
	}

	c.metrics.SourceFetches.WithLabelValues("success").Inc()
	c.metrics.SourceRecords.Add(float64(len(records)))
	c.logger.Debug("hospital cases downloaded", "url", c.url, "bytes", len(body), "records", len(records))
	return records, nil
}

func (c *Client) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrSourceUnavailable, err)
	}
	return body, nil
}

// decodeBody returns a UTF-8 reader over the body. The API serves UTF-8, but
// mirrors have been seen serving ISO-8859-1.
func decodeBody(body []byte) io.Reader {
	if utf8.Valid(body) {
		return bytes.NewReader(body)
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body))
}
