package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"plantshot/internal/infra"
)

const defaultPublishTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher mirrors pipeline events to a topic keyed by batch id so one
// batch stays on one partition and keeps its order.
type KafkaPublisher struct {
	writer  messageWriter
	logger  *infra.Logger
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *infra.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger *infra.Logger) *KafkaPublisher {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &KafkaPublisher{writer: writer, logger: logger, timeout: defaultPublishTimeout}
}

// Publish sends ev. Failures are logged and never reach the pipeline.
func (p *KafkaPublisher) Publish(ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("event", string(ev.Type)).Msg("events: marshal failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.BatchID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
		Time: ev.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn().
			Err(err).
			Str("event", string(ev.Type)).
			Str("batch_id", ev.BatchID).
			Msg("events: kafka publish failed")
	}
}

// Handler adapts Publish to the Handler signature.
func (p *KafkaPublisher) Handler() Handler {
	return p.Publish
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
