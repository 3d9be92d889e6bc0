// Package report publishes unit outcomes and run summaries to Kafka for
// downstream observability consumers (dashboard, alerting). Publication is
// strictly best-effort: the run's success is decided before anything is
// shipped here.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/kafka"
)

// Publisher ships outcome events to the ingest-outcomes topic.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a Publisher on top of a Kafka producer.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "report-publisher"),
	}
}

// PublishOutcomes writes all unit outcomes in one batched produce call,
// keyed by source so a consumer sees one source's outcomes in order.
func (p *Publisher) PublishOutcomes(ctx context.Context, outcomes []model.UnitOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	events := make([]kafka.Event, 0, len(outcomes))
	for _, o := range outcomes {
		events = append(events, kafka.Event{
			Key:   o.SourceID,
			Value: o,
		})
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("publishing %d unit outcomes: %w", len(outcomes), err)
	}
	p.logger.Debug("unit outcomes published", "count", len(outcomes))
	return nil
}

// PublishReport writes the final run summary as a single event keyed by
// run ID.
func (p *Publisher) PublishReport(ctx context.Context, report *model.RunReport) error {
	if err := p.producer.Publish(ctx, kafka.Event{
		Key:   report.RunID,
		Value: report,
	}); err != nil {
		return fmt.Errorf("publishing run report: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
