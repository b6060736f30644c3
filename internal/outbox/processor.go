package outbox

import (
	"context"
	"encoding/json"
	"time"

	"relay-chat/internal/domain/outbox"
	"relay-chat/internal/events"
	"relay-chat/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultBatchSize  = 100
	defaultInterval   = 2 * time.Second
	defaultMaxRetries = 5
	retention         = 24 * time.Hour
)

// Sink receives drained events. The AMQP audit publisher is the production sink.
type Sink interface {
	Publish(ctx context.Context, envelope events.AuditEnvelope) error
}

// Recorder stores audit envelopes in the outbox table instead of publishing them directly.
type Recorder struct {
	repo repository.OutboxRepository
}

func NewRecorder(repo repository.OutboxRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Publish(ctx context.Context, env events.AuditEnvelope) error {
	return r.repo.Create(ctx, &outbox.OutboxEvent{
		EventType:     env.EventType,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		ActorID:       env.ActorID,
		Payload:       string(env.Payload),
		OccurredAt:    env.OccurredAt,
	})
}

// Processor drains pending outbox events to the sink. An event that keeps failing is marked
// FAILED after maxRetries attempts.
type Processor struct {
	repo       repository.OutboxRepository
	sink       Sink
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
	log        *zap.Logger
}

func NewProcessor(repo repository.OutboxRepository, sink Sink, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		repo:       repo,
		sink:       sink,
		clock:      func() time.Time { return time.Now().UTC() },
		batchSize:  defaultBatchSize,
		interval:   defaultInterval,
		maxRetries: defaultMaxRetries,
		log:        log,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.log.Warn("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were delivered.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, e := range batch {
		env := events.AuditEnvelope{
			EventType:     e.EventType,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			ActorID:       e.ActorID,
			OccurredAt:    e.OccurredAt.UTC(),
			Payload:       json.RawMessage(e.Payload),
		}

		if err := p.sink.Publish(ctx, env); err != nil {
			if e.RetryCount+1 >= p.maxRetries {
				p.log.Error("outbox event abandoned", zap.String("event_id", e.ID.String()), zap.String("event_type", e.EventType), zap.Error(err))
				_ = p.repo.MarkFailed(ctx, e.ID, err.Error())
				continue
			}
			_ = p.repo.MarkRetry(ctx, e.ID, err.Error())
			continue
		}

		if err := p.repo.MarkCompleted(ctx, e.ID, p.clock()); err != nil {
			p.log.Warn("outbox mark completed failed", zap.String("event_id", e.ID.String()), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Prune implements cron.Job and deletes events delivered more than a day ago.
func (p *Processor) Prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := p.repo.DeleteCompletedBefore(ctx, p.clock().Add(-retention))
	if err != nil {
		p.log.Warn("outbox prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("outbox pruned", zap.Int64("events", n))
	}
}
