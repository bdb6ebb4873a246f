package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const defaultWriteTimeout = 10 * time.Second

// KafkaProducer lazily manages writers per topic. Messages are hash-partitioned on their key, so
// every event for one user lands on the same partition in commit order.
type KafkaProducer struct {
	brokers      []string
	writeTimeout time.Duration
	logger       logrus.FieldLogger
	mu           sync.Mutex
	writers      map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer. Writer errors are reported through logger.
func NewKafkaProducer(brokers []string, logger logrus.FieldLogger) *KafkaProducer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KafkaProducer{
		brokers:      brokers,
		writeTimeout: defaultWriteTimeout,
		logger:       logger.WithField("component", "kafka-producer"),
		writers:      make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer := p.writerForTopic(topic)
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		WriteTimeout: p.writeTimeout,
		Async:        false,
		ErrorLogger:  kafka.LoggerFunc(p.logger.WithField("topic", topic).Errorf),
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
