package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each message to a topic for downstream consumers.
type Kafka struct {
	w   messageWriter
	Key string
	Log zerolog.Logger
}

func NewKafka(brokers []string, topic string, log zerolog.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
	return &Kafka{w: w, Key: "scanner", Log: log}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Send(ctx context.Context, text string) bool {
	err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.Key),
		Value: []byte(text),
		Time:  time.Now(),
	})
	if err != nil {
		k.Log.Debug().Err(err).Msg("kafka publish failed")
		return false
	}
	return true
}

func (k *Kafka) Close() error { return k.w.Close() }
