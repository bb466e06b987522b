package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"droplink/internal/repository"
	"droplink/internal/storage"
)

const sweepBatchSize = 100

var tracer = otel.Tracer("droplink/internal/service")

// SweepResult reports one sweep run.
type SweepResult struct {
	Purged   int
	Errors   int
	Duration time.Duration
}

type sweepMetrics struct {
	runs     prometheus.Counter
	purged   prometheus.Counter
	errors   prometheus.Counter
	duration prometheus.Histogram
}

func newSweepMetrics(reg prometheus.Registerer) *sweepMetrics {
	m := &sweepMetrics{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "droplink_sweep_runs_total",
			Help: "Number of reclamation sweeps.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "droplink_sweep_purged_total",
			Help: "Expired artifacts purged by the sweeper.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "droplink_sweep_errors_total",
			Help: "Per-artifact failures during sweeps.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "droplink_sweep_duration_seconds",
			Help:    "Sweep duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.purged, m.errors, m.duration)
	}
	return m
}

// Sweeper periodically purges every artifact past expiry, in any state.
type Sweeper struct {
	purger
	interval time.Duration
	metrics  *sweepMetrics

	mu sync.Mutex // serializes RunOnce

	loopMu sync.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. A nil registerer skips metric registration.
func NewSweeper(store storage.Storage, repo repository.ArtifactRepository, interval, storeTimeout time.Duration, logger *slog.Logger, reg prometheus.Registerer) *Sweeper {
	return &Sweeper{
		purger: purger{
			store:   store,
			repo:    repo,
			logger:  logger.With(slog.String("component", "sweeper")),
			now:     time.Now,
			timeout: storeTimeout,
		},
		interval: interval,
		metrics:  newSweepMetrics(reg),
	}
}

// Start runs a sweep immediately and then every interval until Stop or ctx ends.
// Calling Start on a running sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.cancel != nil {
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sctx, s.done)

	s.logger.Info("sweeper_started", slog.String("interval", s.interval.String()))
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper_stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce purges all records with expires_at <= now. Failures are isolated
// per record; the run never aborts on one of them.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "sweeper.run", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	result := &SweepResult{}
	now := s.now().UTC()

	var cursor repository.ExpiryCursor
	for ctx.Err() == nil {
		lctx, cancel := s.storeCtx(ctx)
		batch, err := s.repo.ListExpired(lctx, now, cursor, sweepBatchSize)
		cancel()
		if err != nil {
			s.logger.Error("sweep_list_failed", slog.String("error", err.Error()))
			result.Errors++
			break
		}

		for i := range batch {
			if err := s.purge(ctx, &batch[i], false); err != nil {
				s.logger.Error("sweep_purge_failed",
					slog.String("public_id", batch[i].PublicID),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}
			result.Purged++
		}

		// Failed records stay in the store; the cursor pages past them.
		if len(batch) < sweepBatchSize {
			break
		}
		cursor = repository.CursorAfter(batch[len(batch)-1])
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("sweep.purged", result.Purged),
		attribute.Int("sweep.errors", result.Errors),
	)

	s.metrics.runs.Inc()
	s.metrics.purged.Add(float64(result.Purged))
	s.metrics.errors.Add(float64(result.Errors))
	s.metrics.duration.Observe(result.Duration.Seconds())

	s.logger.Info("sweep_completed",
		slog.Int("purged", result.Purged),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}
