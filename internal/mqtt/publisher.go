package mqtt

import (
	"context"
	"fmt"

	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

// Publisher sends saved records to the configured topic.
type Publisher struct {
	client Client
	topic  string
	unit   string
	log    logger.Logger
}

// NewPublisher wraps client.
func NewPublisher(client Client, cfg Config, unit string, log logger.Logger) *Publisher {
	return &Publisher{client: client, topic: cfg.Topic, unit: unit, log: log.Module(componentName)}
}

// Publish sends rec to the broker.
func (p *Publisher) Publish(ctx context.Context, rec measure.Record) error {
	payload, err := NewRecordDTO(rec, p.unit).Marshal()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return p.client.Publish(ctx, p.topic, payload)
}

// OnSave publishes rec and logs failures; saves never fail because of MQTT.
func (p *Publisher) OnSave(ctx context.Context, rec measure.Record) {
	if err := p.Publish(ctx, rec); err != nil {
		p.log.Warn("failed to publish record",
			logger.Int("product", rec.Product),
			logger.String("topic", p.topic),
			logger.Error(err))
	}
}
