// Package feed consumes pre-normalized wire frames from a Kafka topic
// and dispatches them to the engine. It is the ingest path for replayed
// or externally bridged market data.
package feed

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"titan/service"
)

type Consumer struct {
	reader *kafka.Reader
	svc    *service.EngineService
	log    *zap.Logger
}

func New(brokers []string, topic, groupID string, svc *service.EngineService, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		svc: svc,
		log: log,
	}
}

// Run consumes until the context ends. Each Kafka record carries one
// wire frame.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("feed consumer started")
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("feed read failed", zap.Error(err))
			continue
		}
		if err := c.svc.Dispatch(m.Value); err != nil {
			c.log.Warn("feed frame rejected", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
