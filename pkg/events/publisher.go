package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultTopic receives WagerCommitted events.
const DefaultTopic = "wager.committed"

// Publisher writes wager events to Kafka. A nil Publisher drops events,
// which lets deployments without a broker skip the wiring entirely.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewPublisher builds a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Publisher{writer: writer, log: log}
}

// Publish sends a committed-wager event keyed by wager ID so all events for
// one wager land on the same partition.
func (p *Publisher) Publish(ctx context.Context, e WagerCommitted) error {
	if p == nil {
		return nil
	}
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.WagerID),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish wager event", zap.String("wager_id", e.WagerID), zap.Error(err))
		return err
	}
	p.log.Debug("published wager event", zap.String("wager_id", e.WagerID))
	return nil
}

// Close flushes and shuts down the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
