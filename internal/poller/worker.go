package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/observability/metrics"
	"github.com/smallbiznis/claimsync/internal/observability/tracing"
	"github.com/smallbiznis/claimsync/internal/reconcile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	cycleOK                = "ok"
	cycleSourceUnavailable = "source_unavailable"
	cycleError             = "error"
)

// Applier applies one merged batch of chain events.
type Applier interface {
	Apply(ctx context.Context, events []chaindomain.RawEvent) (reconcile.Summary, error)
}

// CursorStore persists per-kind progress.
type CursorStore interface {
	Load(ctx context.Context, kind string) (uint64, bool, error)
	Advance(ctx context.Context, kind string, block uint64, at time.Time) error
	Heartbeat(ctx context.Context, kinds []string, at time.Time) error
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Source  chaindomain.EventSource
	Applier Applier
	Cursors CursorStore
	Clock   clock.Clock              `optional:"true"`
	Metrics *metrics.PipelineMetrics `optional:"true"`
	Config  Config                   `optional:"true"`
}

// Worker runs one poll-apply-advance cycle at a time.
type Worker struct {
	log     *zap.Logger
	source  chaindomain.EventSource
	applier Applier
	cursors CursorStore
	clock   clock.Clock
	metrics *metrics.PipelineMetrics
	cfg     Config
	tracer  trace.Tracer

	lastHeartbeat atomic.Int64
}

func NewWorker(p Params) *Worker {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Worker{
		log:     p.Log.Named("poller"),
		source:  p.Source,
		applier: p.Applier,
		cursors: p.Cursors,
		clock:   clk,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
		tracer:  otel.Tracer("claimsync/poller"),
	}
}

// RunForever polls until ctx is cancelled. Cancellation is observed between cycles.
func (w *Worker) RunForever(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := w.cfg.PollInterval
		if _, err := w.RunOnce(ctx); err != nil {
			switch {
			case errors.Is(err, chaindomain.ErrSourceUnavailable):
				wait = w.cfg.BackoffInterval
				w.log.Warn("event source unavailable, backing off",
					zap.Duration("backoff", wait),
					zap.Error(err),
				)
			case ctx.Err() != nil:
				return
			default:
				w.log.Error("reconcile cycle failed", zap.Error(err))
			}
		}
		timer.Reset(wait)
	}
}

// CycleResult reports what one cycle did.
type CycleResult struct {
	Summary reconcile.Summary
	Cursors map[chaindomain.EventKind]uint64
}

// RunOnce executes a single cycle. No cursor moves unless every poll and the
// apply step succeeded.
func (w *Worker) RunOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "poller.cycle")
	defer span.End()

	result, err := w.cycle(ctx)

	outcome := cycleOK
	if err != nil {
		outcome = cycleError
		if errors.Is(err, chaindomain.ErrSourceUnavailable) {
			outcome = cycleSourceUnavailable
		}
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.String("cycle.result", outcome),
		attribute.Int("events.applied", result.Summary.Applied),
	)
	w.metrics.ObserveCycle(outcome, time.Since(start))
	return result, err
}

func (w *Worker) cycle(ctx context.Context) (CycleResult, error) {
	if w.source == nil || w.applier == nil || w.cursors == nil {
		return CycleResult{}, errors.New("poller_unavailable")
	}

	from, err := w.loadFromBlocks(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	polls := make([]chaindomain.PollResult, len(chaindomain.Kinds))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, kind := range chaindomain.Kinds {
		i, kind := i, kind
		group.Go(func() error {
			res, err := w.source.Poll(groupCtx, kind, from[kind])
			if err != nil {
				return fmt.Errorf("poll %s: %w", kind, err)
			}
			polls[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return CycleResult{}, err
	}

	var events []chaindomain.RawEvent
	for _, res := range polls {
		events = append(events, res.Events...)
	}
	chaindomain.SortEvents(events)

	// Applying must finish once started, even when shutdown begins. The
	// engine bounds each event on its own.
	applyCtx := context.WithoutCancel(ctx)
	summary, err := w.applier.Apply(applyCtx, events)
	if err != nil {
		return CycleResult{Summary: summary}, fmt.Errorf("apply: %w", err)
	}

	commitCtx, cancel := context.WithTimeout(applyCtx, w.cfg.CommitTimeout)
	defer cancel()

	now := w.clock.Now()
	result := CycleResult{Summary: summary, Cursors: map[chaindomain.EventKind]uint64{}}
	kinds := make([]string, 0, len(chaindomain.Kinds))
	for i, kind := range chaindomain.Kinds {
		res := polls[i]
		kinds = append(kinds, string(kind))
		if !res.Scanned {
			continue
		}
		if err := w.cursors.Advance(commitCtx, string(kind), res.ToBlock, now); err != nil {
			return result, fmt.Errorf("advance %s cursor: %w", kind, err)
		}
		result.Cursors[kind] = res.ToBlock
		w.metrics.SetCursor(string(kind), res.ToBlock)
	}

	if err := w.cursors.Heartbeat(commitCtx, kinds, now); err != nil {
		w.log.Warn("failed to persist heartbeat", zap.Error(err))
	}
	w.lastHeartbeat.Store(now.UnixNano())
	w.metrics.SetHeartbeat(now)

	if len(events) > 0 {
		w.log.Info("reconcile cycle applied",
			zap.Int("events", len(events)),
			zap.Int("applied", summary.Applied),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	}
	return result, nil
}

// loadFromBlocks returns the first unprocessed block for each kind.
func (w *Worker) loadFromBlocks(ctx context.Context) (map[chaindomain.EventKind]uint64, error) {
	from := make(map[chaindomain.EventKind]uint64, len(chaindomain.Kinds))
	var (
		head     uint64
		haveHead bool
	)
	for _, kind := range chaindomain.Kinds {
		last, ok, err := w.cursors.Load(ctx, string(kind))
		if err != nil {
			return nil, fmt.Errorf("load %s cursor: %w", kind, err)
		}
		if ok {
			from[kind] = last + 1
			continue
		}
		if w.cfg.StartBlock >= 0 {
			from[kind] = uint64(w.cfg.StartBlock)
			continue
		}
		if !haveHead {
			head, err = w.source.Head(ctx)
			if err != nil {
				return nil, err
			}
			haveHead = true
		}
		from[kind] = head
	}
	return from, nil
}

// LastHeartbeat returns when the last cycle completed; zero before the first.
func (w *Worker) LastHeartbeat() time.Time {
	nanos := w.lastHeartbeat.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}
