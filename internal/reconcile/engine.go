package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/claimsync/internal/cache"
	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/config"
	"github.com/smallbiznis/claimsync/internal/contentstore"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/journal"
	obscontext "github.com/smallbiznis/claimsync/internal/observability/context"
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"github.com/smallbiznis/claimsync/internal/observability/metrics"
	"github.com/smallbiznis/claimsync/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// weiExponent converts on-chain wei integers into ETH decimals.
const weiExponent = -18

// FailureRecorder persists events that could not be applied.
type FailureRecorder interface {
	Record(ctx context.Context, failure journal.Failure) error
}

type Config struct {
	// EventTimeout bounds applying a single event, excluding post-commit work.
	EventTimeout   time.Duration
	ContentTimeout time.Duration
	// WriteTimeout bounds bookkeeping writes that must land even after the
	// event deadline has passed.
	WriteTimeout  time.Duration
	PayerCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		EventTimeout:   2 * time.Minute,
		ContentTimeout: 30 * time.Second,
		WriteTimeout:   10 * time.Second,
		PayerCacheTTL:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EventTimeout <= 0 {
		c.EventTimeout = def.EventTimeout
	}
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = def.ContentTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PayerCacheTTL <= 0 {
		c.PayerCacheTTL = def.PayerCacheTTL
	}
	return c
}

// ConfigFrom derives engine settings from the process config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		EventTimeout:   cfg.Poller.EventTimeout,
		ContentTimeout: cfg.ContentStore.Timeout,
	}.withDefaults()
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     insurancedomain.Repository
	Details  chaindomain.DetailFetcher
	Store    contentstore.ContentStore
	Failures FailureRecorder
	Clock    clock.Clock
	Metrics  *metrics.PipelineMetrics `optional:"true"`
	Config   Config                   `optional:"true"`
}

// Summary counts the outcome of one Apply call.
type Summary struct {
	Applied    int
	Duplicates int
	Skipped    int
	Failed     int
}

// payerIdentity holds the immutable payer fields; aggregates are never cached.
type payerIdentity struct {
	ID            snowflake.ID
	WalletAddress string
	FullName      string
	Email         string
	NationalID    string
}

// Engine applies decoded chain events to the local store exactly once in effect.
type Engine struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     insurancedomain.Repository
	details  chaindomain.DetailFetcher
	store    contentstore.ContentStore
	failures FailureRecorder
	clock    clock.Clock
	metrics  *metrics.PipelineMetrics
	cfg      Config
	payers   cache.Cache[string, payerIdentity]
	tracer   trace.Tracer
}

func NewEngine(p Params) *Engine {
	store := p.Store
	if store == nil {
		store = contentstore.Noop{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Engine{
		db:       p.DB,
		log:      p.Log.Named("reconcile.engine"),
		genID:    p.GenID,
		repo:     p.Repo,
		details:  p.Details,
		store:    store,
		failures: p.Failures,
		clock:    clk,
		metrics:  p.Metrics,
		cfg:      p.Config.withDefaults(),
		payers:   cache.NewTTLCache[string, payerIdentity](payerCacheSize, clk),
		tracer:   otel.Tracer("claimsync/reconcile"),
	}
}

const payerCacheSize = 10000

type outcome string

const (
	outcomeApplied   outcome = metrics.OutcomeApplied
	outcomeDuplicate outcome = metrics.OutcomeDuplicate
	outcomeSkipped   outcome = metrics.OutcomeSkipped
)

// Apply processes events in (block, log index) order. A failing event is
// journaled and the batch continues; an error is returned only when the
// journal itself cannot be written, in which case the batch must be redelivered.
func (e *Engine) Apply(ctx context.Context, events []chaindomain.RawEvent) (Summary, error) {
	ordered := make([]chaindomain.RawEvent, len(events))
	copy(ordered, events)
	chaindomain.SortEvents(ordered)

	var summary Summary
	for _, ev := range ordered {
		eventCtx, cancel := context.WithTimeout(ctx, e.cfg.EventTimeout)
		result, err := e.applyOne(eventCtx, ev)
		cancel()
		if err != nil {
			summary.Failed++
			e.metrics.IncEvent(string(ev.Kind), metrics.OutcomeFailed)
			if journalErr := e.recordFailure(ctx, ev, err); journalErr != nil {
				return summary, fmt.Errorf("record failure for %s: %w", ev.TxHash, journalErr)
			}
			continue
		}

		e.metrics.IncEvent(string(ev.Kind), string(result))
		switch result {
		case outcomeApplied:
			summary.Applied++
		case outcomeDuplicate:
			summary.Duplicates++
		case outcomeSkipped:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (e *Engine) applyOne(ctx context.Context, ev chaindomain.RawEvent) (outcome, error) {
	ctx = obscontext.WithEventRef(ctx, obscontext.EventRef{
		Kind:        string(ev.Kind),
		TxHash:      ev.TxHash,
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
	})
	ctx, span := e.tracer.Start(ctx, "reconcile.apply_event", trace.WithAttributes(
		tracing.EventAttributes(string(ev.Kind), ev.TxHash, ev.BlockNumber, ev.LogIndex)...,
	))
	defer span.End()

	var (
		result outcome
		err    error
	)
	switch ev.Kind {
	case chaindomain.KindPremiumPaid:
		result, err = e.applyPayment(ctx, ev)
	case chaindomain.KindClaimSubmitted:
		result, err = e.applyClaimSubmitted(ctx, ev)
	case chaindomain.KindClaimVerified:
		result, err = e.applyClaimVerified(ctx, ev)
	default:
		err = chaindomain.ErrUnknownEventKind
	}

	if errors.Is(err, insurancedomain.ErrDanglingReference) {
		logger.With(ctx, e.log).Warn("skipping event with dangling reference", zap.Error(err))
		span.SetAttributes(tracing.AttrOutcome.String(string(outcomeSkipped)))
		return outcomeSkipped, nil
	}
	if err != nil {
		logger.With(ctx, e.log).Error("failed to apply event", zap.Error(err))
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "apply failed")
		return "", err
	}
	span.SetAttributes(tracing.AttrOutcome.String(string(result)))
	return result, nil
}

// detached keeps ctx values but drops its cancellation, bounded by WriteTimeout.
func (e *Engine) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.WriteTimeout)
}

func (e *Engine) recordFailure(ctx context.Context, ev chaindomain.RawEvent, cause error) error {
	if e.failures == nil {
		return errors.New("journal_unavailable")
	}
	writeCtx, cancel := e.detached(ctx)
	defer cancel()
	return e.failures.Record(writeCtx, journal.Failure{
		Kind:        string(ev.Kind),
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		BlockNumber: ev.BlockNumber,
		Payload:     eventPayload(ev),
		Err:         cause,
	})
}

// eventPayload keeps enough of the event to replay it by hand.
func eventPayload(ev chaindomain.RawEvent) map[string]any {
	payload := map[string]any{}
	if ev.Payer != "" {
		payload["payer"] = ev.Payer
	}
	if ev.AmountWei != nil {
		payload["amount_wei"] = ev.AmountWei.String()
	}
	if !ev.Timestamp.IsZero() {
		payload["timestamp"] = ev.Timestamp.UTC().Format(time.RFC3339)
	}
	if ev.ClaimID != "" {
		payload["claim_id"] = ev.ClaimID
	}
	if ev.Kind == chaindomain.KindClaimVerified {
		payload["verified"] = ev.Verified
	}
	return payload
}

func (e *Engine) resolvePayer(ctx context.Context, wallet string) (payerIdentity, error) {
	normalized, err := insurancedomain.NormalizeWallet(wallet)
	if err != nil {
		return payerIdentity{}, fmt.Errorf("%w: payer %q: %w", insurancedomain.ErrDanglingReference, wallet, err)
	}
	if identity, ok := e.payers.Get(normalized); ok {
		return identity, nil
	}

	payer, err := e.repo.FindPayerByWallet(ctx, e.db, normalized)
	if err != nil {
		return payerIdentity{}, err
	}
	if payer == nil {
		return payerIdentity{}, fmt.Errorf("%w: payer %s is not registered", insurancedomain.ErrDanglingReference, normalized)
	}

	identity := payerIdentity{
		ID:            payer.ID,
		WalletAddress: payer.WalletAddress,
		FullName:      payer.FullName,
		Email:         payer.Email,
		NationalID:    payer.NationalID,
	}
	e.payers.Set(normalized, identity, e.cfg.PayerCacheTTL)
	return identity, nil
}

func weiToETH(ev chaindomain.RawEvent) (decimal.Decimal, error) {
	if ev.AmountWei == nil || ev.AmountWei.Sign() < 0 {
		return decimal.Decimal{}, errors.New("invalid_amount")
	}
	return decimal.NewFromBigInt(ev.AmountWei, weiExponent), nil
}
