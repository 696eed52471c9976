package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/go-co-op/gocron"
)

// ErrRefreshInProgress is returned by Refresh when another refresh is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// TableLoader produces a fresh hospital cases table.
type TableLoader interface {
	Load(ctx context.Context) (domain.Table, error)
}

// TableSink receives every table the service publishes.
type TableSink interface {
	LoadTable(ctx context.Context, table domain.Table) error
}

// Option configures a Service.
type Option func(*Service)

// WithSink forwards each refreshed table to sink.
func WithSink(sink TableSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithSchedule sets the daily refresh times, in gocron At format ("06:00;18:00").
func WithSchedule(at string) Option {
	return func(s *Service) { s.schedule = at }
}

// WithSinkRetry sets how many times a sink write is attempted and the initial
// backoff between attempts.
func WithSinkRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.sinkAttempts = max(attempts, 1)
		s.sinkBackoff = backoff
	}
}

// Service refreshes the hospital cases table on a schedule and holds the
// latest successful result.
type Service struct {
	loader  TableLoader
	sink    TableSink
	logger  *slog.Logger
	metrics *observability.Metrics

	schedule  string
	scheduler *gocron.Scheduler
	mu        sync.Mutex // guards stopped and scheduler start/stop
	stopped   bool

	sinkAttempts   int
	sinkBackoff    time.Duration
	maxSinkBackoff time.Duration

	latest     atomic.Pointer[domain.Table]
	refreshing atomic.Bool
}

// NewService creates a Service. Without WithSink, tables are only held in memory.
func NewService(loader TableLoader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		loader:         loader,
		logger:         logger,
		metrics:        metrics,
		schedule:       "06:00;18:00",
		scheduler:      gocron.NewScheduler(time.Local),
		sinkAttempts:   3,
		sinkBackoff:    200 * time.Millisecond,
		maxSinkBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckReadiness returns nil once a table has been published.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.latest.Load() == nil {
		return errors.New("no hospitalization table loaded yet")
	}
	return nil
}

// Latest returns the most recently published table.
func (s *Service) Latest() (domain.Table, bool) {
	t := s.latest.Load()
	if t == nil {
		return domain.Table{}, false
	}
	return *t, true
}

// Start performs an initial refresh and schedules the rest. A failed initial
// refresh is logged and left to the schedule; only scheduling errors are returned.
// If ctx ends or Stop is called during the initial refresh, nothing is scheduled.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("initial refresh failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || ctx.Err() != nil {
		s.logger.Info("service stopped before scheduling refreshes")
		return nil
	}

	_, err := s.scheduler.Every(1).Days().At(s.schedule).Do(func() {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
			s.logger.Error("scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh at %q: %w", s.schedule, err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("refresh scheduled", "at", s.schedule)
	return nil
}

// Stop halts the scheduler and prevents a pending Start from scheduling.
// A refresh already running is not interrupted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.scheduler.Stop()
}

// Refresh loads a new table, publishes it, and forwards it to the sink.
// A load error keeps the previous table. A sink error is returned after the
// table has been published.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.logger.Info("refresh already in progress, skipping")
		s.metrics.Refreshes.WithLabelValues("skipped").Inc()
		return ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	start := time.Now()
	table, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("load table: %w", err)
	}

	s.latest.Store(&table)
	s.metrics.Refreshes.WithLabelValues(string(table.Source)).Inc()
	s.metrics.TableRows.Set(float64(len(table.Rows)))
	if table.Source == domain.SourceFallback {
		s.metrics.TableFallback.Set(1)
	} else {
		s.metrics.TableFallback.Set(0)
	}

	s.logger.Info("table refreshed",
		"source", table.Source,
		"rows", len(table.Rows),
		"duration", time.Since(start),
	)

	if s.sink == nil {
		return nil
	}
	return s.publish(ctx, table)
}

// publish writes the table to the sink, retrying with exponential backoff.
func (s *Service) publish(ctx context.Context, table domain.Table) error {
	backoff := s.sinkBackoff
	var err error
	for attempt := 1; attempt <= s.sinkAttempts; attempt++ {
		if err = s.sink.LoadTable(ctx, table); err == nil {
			s.metrics.SinkRows.Add(float64(len(table.Rows)))
			return nil
		}
		s.logger.Warn("sink write failed", "error", err, "attempt", attempt, "rows", len(table.Rows))

		if attempt == s.sinkAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, s.maxSinkBackoff)
	}
	return fmt.Errorf("write table to sink: %w", err)
}
