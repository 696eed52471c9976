package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/coviddata"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMockCSV(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join("..", "..", "data", "mock", "nhs_region_hospital_cases.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func mockDashboard(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_WithMockCSVData(t *testing.T) {
	srv := mockDashboard(t, readMockCSV(t))
	client := coviddata.NewClient(srv.URL, 5*time.Second, newTestMetrics(), slog.Default())
	loader := pipeline.NewLoader(client, slog.Default())

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRemote, table.Source)
	assert.Len(t, table.Rows, 30)

	t.Run("every region once, contiguous, in mapping order", func(t *testing.T) {
		var want []string
		for _, m := range domain.RegionMappings() {
			want = append(want, m.Region)
		}
		assert.Equal(t, want, table.Regions())
	})

	t.Run("nothing before the reporting start", func(t *testing.T) {
		for _, r := range table.Rows {
			if r.Date != nil {
				assert.False(t, r.Date.Before(domain.ReportingStart), "%s %s", r.Region, r.DateString())
			}
		}
	})

	t.Run("matched rows carry counts", func(t *testing.T) {
		for _, r := range table.Rows {
			if r.Date != nil {
				_, ok := r.Cases.Value()
				assert.True(t, ok, "%s %s", r.Region, r.DateString())
			}
		}
		assert.Len(t, table.ForRegion("South West"), 2)
	})

	t.Run("unmatched regions get one null row", func(t *testing.T) {
		for _, region := range []string{"England", "Scotland", "Wales", "Northern Ireland"} {
			rows := table.ForRegion(region)
			require.Len(t, rows, 1, region)
			assert.Nil(t, rows[0].Date)
			assert.True(t, rows[0].Cases.IsNull())
		}
	})

	t.Run("regions sharing an NHS region get identical rows", func(t *testing.T) {
		strip := func(rows []domain.Row) []domain.Row {
			out := make([]domain.Row, len(rows))
			for i, r := range rows {
				r.Region = ""
				out[i] = r
			}
			return out
		}
		assert.Equal(t, strip(table.ForRegion("West Midlands")), strip(table.ForRegion("East Midlands")))
		assert.Equal(t, strip(table.ForRegion("Yorkshire and The Humber")), strip(table.ForRegion("North East")))
		assert.Len(t, table.ForRegion("North East"), 3)
	})

	t.Run("output has no NHSRegion column", func(t *testing.T) {
		assert.Equal(t, []string{"region", "date", "hospital_cases"}, table.Columns())
		data, err := json.Marshal(table.Rows)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "NHSRegion")
		assert.NotContains(t, string(data), "nhs_region")
	})
}

func TestLoader_WithUnreachableDashboard(t *testing.T) {
	srv := mockDashboard(t, nil)
	url := srv.URL
	srv.Close()

	client := coviddata.NewClient(url, time.Second, newTestMetrics(), slog.New(slog.DiscardHandler))
	loader := pipeline.NewLoader(client, slog.New(slog.DiscardHandler))

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, table.Source)
	require.Len(t, table.Rows, len(domain.RegionMappings()))
	for _, r := range table.Rows {
		assert.Equal(t, domain.MissingSentinel, r.Cases.String(), r.Region)
	}
}

func TestLoader_CancelledDuringFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	client := coviddata.NewClient(srv.URL, 5*time.Second, newTestMetrics(), logger)
	loader := pipeline.NewLoader(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	table, err := loader.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, table.Rows)
	assert.NotContains(t, logs.String(), "source unavailable")
}

func TestService_Refresh_CancelledFetchKeepsPreviousTable(t *testing.T) {
	data := readMockCSV(t)
	var hang atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hang.Load() {
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.DiscardHandler)
	client := coviddata.NewClient(srv.URL, 5*time.Second, newTestMetrics(), logger)
	s := pipeline.NewService(pipeline.NewLoader(client, logger), logger, newTestMetrics())

	require.NoError(t, s.Refresh(context.Background()))

	hang.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	require.ErrorIs(t, s.Refresh(ctx), context.Canceled)

	table, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, domain.SourceRemote, table.Source)
	assert.Len(t, table.Rows, 30)
}
