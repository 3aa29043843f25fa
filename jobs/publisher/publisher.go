// Package publisher drains the engine's output ring and delivers the
// event stream to Kafka. It is the single consumer of the ring and the
// engine never blocks on it. Sequence numbers are assigned here, at
// drain time, so events the engine dropped on a full ring never get
// one and are absent from both the topic and the journal.
package publisher

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"titan/domain/book"
	"titan/infra/journal"
	"titan/infra/metrics"
	"titan/infra/ring"
	"titan/infra/sequence"
	"titan/wire"
)

const drainBatch = 256

type Publisher struct {
	out      *ring.Buffer[book.Event]
	flush    func()
	producer sarama.SyncProducer
	topic    string
	journal  *journal.Journal // optional
	seq      *sequence.Sequencer
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Set
}

// New connects the sync producer. flush is called before each drain so
// partially batched events are not held back between ticks.
func New(
	out *ring.Buffer[book.Event],
	flush func(),
	brokers []string,
	topic string,
	jnl *journal.Journal,
	seq *sequence.Sequencer,
	interval time.Duration,
	log *zap.Logger,
	m *metrics.Set,
) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		out:      out,
		flush:    flush,
		producer: producer,
		topic:    topic,
		journal:  jnl,
		seq:      seq,
		interval: interval,
		log:      log,
		metrics:  m,
	}, nil
}

// Run drains the ring until the context is cancelled. A final drain on
// shutdown delivers whatever the engine flushed last.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Info("publisher started", zap.String("topic", p.topic))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drainOnce()
			return
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

func (p *Publisher) drainOnce() {
	p.flush()

	buf := make([]book.Event, drainBatch)
	for {
		n := p.out.PopBatch(buf)
		if n == 0 {
			return
		}

		msgs := make([]*sarama.ProducerMessage, 0, n)
		for i := 0; i < n; i++ {
			payload := wire.EncodeEvent(buf[i])
			if payload == nil {
				continue
			}
			seq := p.seq.Next()
			if p.journal != nil {
				if err := p.journal.Append(seq, payload); err != nil {
					p.log.Warn("journal append failed", zap.Error(err))
				} else {
					p.metrics.EventsJournaled.Inc()
				}
			}
			msgs = append(msgs, &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(string(buf[i].Type)),
				Value: sarama.ByteEncoder(payload),
			})
		}
		if len(msgs) == 0 {
			continue
		}
		if err := p.producer.SendMessages(msgs); err != nil {
			// Delivery retries exhausted; when a journal is configured
			// it still holds the batch for consumers to backfill.
			p.log.Warn("kafka send failed", zap.Error(err))
			continue
		}
		p.metrics.EventsPublished.Add(float64(len(msgs)))
	}
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
