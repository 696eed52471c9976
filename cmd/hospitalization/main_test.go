package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/export"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveMockCSV(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", "nhs_region_hospital_cases.csv"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func runCLI(ctx context.Context, t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")

	var out, logs bytes.Buffer
	err = run(ctx, args, &out, &logs, observability.NewMetricsForTesting())
	return out.String(), logs.String(), err
}

func TestRun_CSVToStdout(t *testing.T) {
	stdout, stderr, err := runCLI(context.Background(), t, "-source-url", serveMockCSV(t))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(stdout)).ReadAll()
	require.NoError(t, err, "stdout must be pure CSV")
	require.Len(t, records, 31)
	assert.Equal(t, []string{"region", "date", "hospital_cases"}, records[0])

	assert.Contains(t, stderr, `"msg":"hospital cases loaded"`)
	assert.Contains(t, stderr, `"rows":30`)
	assert.NotContains(t, stdout, "hospital cases loaded")
}

func TestRun_ParquetToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.parquet")
	stdout, stderr, err := runCLI(context.Background(), t,
		"-source-url", serveMockCSV(t), "-format", "parquet", "-out", path)
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"msg":"table written"`)

	rows, err := parquet.ReadFile[export.ParquetRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 30)
	assert.Equal(t, "England", rows[0].Region)
	assert.Nil(t, rows[0].HospitalCases)
}

func TestRun_UnknownFormat(t *testing.T) {
	stdout, stderr, err := runCLI(context.Background(), t, "-format", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xlsx"`)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "-format")
}

func TestRun_InvalidTimeout(t *testing.T) {
	_, _, err := runCLI(context.Background(), t, "-timeout", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-timeout")
}

func TestRun_UnreachableSourceWritesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	stdout, stderr, err := runCLI(context.Background(), t, "-source-url", url, "-format", "json")
	require.NoError(t, err)

	assert.Contains(t, stdout, `"source": "fallback"`)
	assert.Contains(t, stdout, `"hospital_cases": "missing"`)
	assert.Contains(t, stderr, `"level":"ERROR"`)
}

func TestRun_CancelledLoadWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	path := filepath.Join(t.TempDir(), "cases.csv")
	stdout, stderr, err := runCLI(ctx, t, "-source-url", srv.URL, "-out", path)
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, stdout)
	assert.NotContains(t, stderr, domain.MissingSentinel)
	assert.NoFileExists(t, path)
}
