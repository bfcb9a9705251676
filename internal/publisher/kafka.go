package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cmjh/portal-weather/internal/observability"
	"github.com/cmjh/portal-weather/internal/weather"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces stored forecast snapshots to a Kafka topic.
// It implements weather.Publisher.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, metrics *observability.Metrics) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafkaPublisher(w, metrics)
}

func newKafkaPublisher(w messageWriter, metrics *observability.Metrics) *KafkaPublisher {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &KafkaPublisher{writer: w, metrics: metrics}
}

// Publish writes one snapshot, keyed by city so a city's snapshots stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, snapshot weather.Snapshot) error {
	msg, err := serializeToMessage(snapshot)
	if err != nil {
		p.metrics.PublishedSnapshots.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.PublishedSnapshots.WithLabelValues("error").Inc()
		return fmt.Errorf("write snapshot %s: %w", snapshot.ID, err)
	}
	p.metrics.PublishedSnapshots.WithLabelValues("success").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(snapshot weather.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snapshot.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(snapshot.ID)},
			{Key: "fetched_at", Value: []byte(snapshot.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
