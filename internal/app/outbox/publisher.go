package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	clockport "github.com/sura-tech/quotes-api/internal/ports/out/clock"
	"github.com/sura-tech/quotes-api/internal/ports/out/eventsink"
	outboxport "github.com/sura-tech/quotes-api/internal/ports/out/outbox"
)

// Config for the polling publisher. Zero values are not defaulted here;
// callers pass a validated configuration (see platform/config).
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration

	// StuckAfter requeues PROCESSING records whose last transition is older
	// than this. Zero disables the recovery sweep.
	StuckAfter time.Duration
}

// Publisher drains the outbox: each tick it claims a batch of due records,
// attempts delivery through the sink, and settles each record per outcome.
// It owns all NEW->PROCESSING->{SENT,FAILED,NEW} transitions.
type Publisher struct {
	store  outboxport.Store
	sink   eventsink.Sink
	clock  clockport.Clock
	cfg    Config
	logger *zap.Logger
}

func NewPublisher(store outboxport.Store, sink eventsink.Sink, clk clockport.Clock, cfg Config, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, clock: clk, cfg: cfg, logger: logger}
}

// Run polls until ctx is canceled. In-flight batch processing finishes
// before Run returns; records claimed but unsettled at a hard kill are
// recovered by the staleness sweep on a later tick.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("outbox publisher starting",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("max_attempts", p.cfg.MaxAttempts))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one polling cycle. Exposed so tests and one-shot tools can
// drive the publisher without the ticker loop.
func (p *Publisher) Tick(ctx context.Context) {
	now := p.clock.Now()

	if p.cfg.StuckAfter > 0 {
		n, err := p.store.RequeueStuck(ctx, now.Add(-p.cfg.StuckAfter))
		if err != nil {
			p.logger.Error("outbox stuck-row sweep failed", zap.Error(err))
		} else if n > 0 {
			p.logger.Warn("requeued stuck outbox records", zap.Int("count", n))
		}
	}

	batch, err := p.store.ClaimDue(ctx, now, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("outbox claim failed", zap.Error(err))
		return
	}
	if len(batch) == 0 {
		return
	}

	for _, rec := range batch {
		p.deliver(ctx, rec)
	}
}

func (p *Publisher) deliver(ctx context.Context, rec outboxport.Record) {
	err := p.sink.Publish(ctx, eventsink.Message{
		EventID:     rec.EventID,
		EventType:   rec.EventType,
		AggregateID: rec.AggregateID,
		Payload:     rec.Payload,
	})
	if err == nil {
		if err := p.store.MarkSent(ctx, rec.EventID); err != nil {
			// The event went out but its settlement did not stick; the
			// record will be redelivered, which the sink contract allows.
			p.logger.Error("outbox mark-sent failed", zap.String("event_id", string(rec.EventID)), zap.Error(err))
			return
		}
		p.logger.Info("outbox event published",
			zap.String("event_id", string(rec.EventID)),
			zap.String("event_type", rec.EventType),
			zap.String("aggregate_id", rec.AggregateID))
		return
	}

	attempts := rec.Attempts + 1
	lastError := truncateError(err)

	if attempts >= p.cfg.MaxAttempts {
		if err := p.store.MarkFailed(ctx, rec.EventID, attempts, lastError); err != nil {
			p.logger.Error("outbox mark-failed failed", zap.String("event_id", string(rec.EventID)), zap.Error(err))
			return
		}
		p.logger.Error("outbox event dead-lettered",
			zap.String("event_id", string(rec.EventID)),
			zap.Int("attempts", attempts),
			zap.String("last_error", lastError))
		return
	}

	nextAttemptAt := p.clock.Now().Add(Backoff(attempts, p.cfg.BaseBackoff, p.cfg.MaxBackoff))
	if err := p.store.Reschedule(ctx, rec.EventID, attempts, nextAttemptAt, lastError); err != nil {
		p.logger.Error("outbox reschedule failed", zap.String("event_id", string(rec.EventID)), zap.Error(err))
		return
	}
	p.logger.Warn("outbox publish failed, will retry",
		zap.String("event_id", string(rec.EventID)),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", nextAttemptAt),
		zap.String("last_error", lastError))
}
