// Command hospitalization loads the UK hospital cases table once and writes it
// to stdout or a file.
//
// Usage:
//
//	go run ./cmd/hospitalization -format parquet -out hospital_cases.parquet
//
// SOURCE_URL, SOURCE_TIMEOUT and LOG_LEVEL are read from the environment (or
// .env) the same way the service reads them. Flags override the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/coviddata"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/export"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/config"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, observability.NewMetrics())
	stop()

	switch {
	case errors.Is(err, flag.ErrHelp):
	case err != nil:
		slog.Error("hospitalization load failed", "error", err)
		os.Exit(1)
	}
}

// run loads the table once and writes it to stdout or -out. Logs go to
// stderr so stdout carries only the table.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, metrics *observability.Metrics) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("hospitalization", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formatName := fs.String("format", "csv", "output format: csv, json or parquet")
	out := fs.String("out", "", "output file (default stdout)")
	sourceURL := fs.String("source-url", cfg.SourceURL, "dashboard CSV endpoint")
	timeout := fs.Duration("timeout", cfg.SourceTimeout, "source request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		fs.Usage()
		return err
	}
	if *timeout <= 0 {
		return fmt.Errorf("invalid -timeout %s", *timeout)
	}

	logger := observability.NewWriterLogger(cfg, stderr)
	loader := pipeline.NewLoader(coviddata.NewClient(*sourceURL, *timeout, metrics, logger), logger)

	start := time.Now()
	table, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("hospital cases loaded",
		"source", table.Source,
		"rows", len(table.Rows),
		"duration", time.Since(start),
	)

	if *out == "" {
		return export.Write(stdout, format, table)
	}
	return writeFile(*out, format, table, logger)
}

func writeFile(path string, format export.Format, table domain.Table, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(f, format, table); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	logger.Info("table written", "path", path, "format", format)
	return nil
}
