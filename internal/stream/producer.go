// Package stream publishes executed decisions to the coordination
// Kafka topic so downstream planners and dashboards see them in order.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	skafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Writer is the subset of the kafka writer the producer needs; tests
// inject a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Producer publishes decisions keyed by decision id.
type Producer struct {
	writer Writer
	logger *logrus.Logger
}

// NewProducer writes to the given broker and topic.
func NewProducer(broker, topic string, logger *logrus.Logger) *Producer {
	w := &skafka.Writer{
		Addr:     skafka.TCP(broker),
		Topic:    topic,
		Balancer: &skafka.LeastBytes{},
	}
	return &Producer{writer: w, logger: logger}
}

// NewProducerWithWriter injects a writer, for tests.
func NewProducerWithWriter(w Writer, logger *logrus.Logger) *Producer {
	return &Producer{writer: w, logger: logger}
}

// PublishDecision emits one executed decision.
func (p *Producer) PublishDecision(ctx context.Context, d model.Decision) error {
	value, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", d.ID, err)
	}
	msg := skafka.Message{Key: []byte(d.ID), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithFields(logrus.Fields{
			"decision": d.ID,
			"error":    err,
		}).Error("decision publish failed")
		return err
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
