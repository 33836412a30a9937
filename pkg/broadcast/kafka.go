package broadcast

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Writer publishes refresh events to a Kafka topic.
type Writer struct {
	kw *kafka.Writer
}

func NewWriter(addr, topic string, batchSize int) *Writer {
	return &Writer{
		kw: &kafka.Writer{
			Addr:      kafka.TCP(addr),
			Topic:     topic,
			BatchSize: batchSize,
		},
	}
}

// CreateTopic creates the broadcast topic on the broker if it doesn't exist.
func CreateTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}

// Publish writes exactly one event for an acknowledged mutation.
func (w *Writer) Publish(ctx context.Context, senderID, tag string) error {
	ev, err := NewEvent(senderID, tag)
	if err != nil {
		return err
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return w.kw.WriteMessages(ctx, kafka.Message{
		Key:   []byte(senderID),
		Value: b,
	})
}

func (w *Writer) Close() error {
	return w.kw.Close()
}

// Reader consumes refresh events from the broadcast topic.
type Reader struct {
	r *kafka.Reader
}

func NewReader(brokers []string, topic, groupID string) *Reader {
	return &Reader{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		}),
	}
}

// Listen invokes handle for every event until the context is cancelled.
// Undecodable messages are logged and skipped, the loop keeps running.
func (r *Reader) Listen(ctx context.Context, handle func(Event)) error {
	for {
		msg, err := r.r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Errorf("[broadcast] failed to read message from Kafka: %v", err)
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Errorf("[broadcast] failed to unmarshal event: %v", err)
			continue
		}

		handle(ev)
	}
}

func (r *Reader) Close() error {
	return r.r.Close()
}
