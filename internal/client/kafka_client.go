package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"credential-service/internal/config"
	"credential-service/internal/models"
	"credential-service/internal/util"
)

// KafkaProducer streams audit records to downstream consumers (the
// school information system, long-term archival jobs).
type KafkaProducer struct {
	Writer *kafka.Writer
	config *config.KafkaConfig
	logger *zap.Logger
}

func NewKafkaProducer(cfg *config.Config, logger *zap.Logger) (*KafkaProducer, error) {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1048576, // 1MB
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)),
				)
			}
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Connection probe: write a throwaway message and only treat real
	// broker unreachability as fatal (a missing topic is fine here).
	err := writer.WriteMessages(ctx, kafka.Message{
		Topic: "health-check",
		Key:   []byte("probe"),
		Value: []byte("connectivity probe"),
	})
	if err != nil && !isConnectivityError(err) {
		return nil, fmt.Errorf("failed to connect to Kafka brokers: %w", err)
	}

	util.Info("Kafka producer initialized",
		zap.Strings("brokers", kafkaConfig.Brokers),
	)

	return &KafkaProducer{
		Writer: writer,
		config: &kafkaConfig,
		logger: logger,
	}, nil
}

func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Unknown Topic") ||
		strings.Contains(msg, "unknown topic") ||
		strings.Contains(msg, "Leader Not Available") ||
		strings.Contains(msg, "leader not available")
}

// PublishRecord writes one audit record to the given topic, keyed by
// subject id so per-subject ordering survives partitioning.
func (p *KafkaProducer) PublishRecord(ctx context.Context, topic string, rec models.AuditRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(rec.SubjectID),
		Value: value,
		Time:  rec.Timestamp,
	})
}

func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: "health-check",
		Key:   []byte("probe"),
		Value: []byte("connectivity probe"),
	})
	if err != nil && !isConnectivityError(err) {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.Writer != nil {
		err := p.Writer.Close()
		if err != nil {
			util.Error("failed to close Kafka producer", zap.Error(err))
			return err
		}
		util.Info("Kafka producer closed")
	}
	return nil
}

// KafkaAuditSink adapts the producer to the audit sink interface.
type KafkaAuditSink struct {
	producer *KafkaProducer
	topic    string
}

func NewKafkaAuditSink(producer *KafkaProducer, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{producer: producer, topic: topic}
}

func (s *KafkaAuditSink) Name() string { return "kafka" }

func (s *KafkaAuditSink) Write(ctx context.Context, rec models.AuditRecord) error {
	return s.producer.PublishRecord(ctx, s.topic, rec)
}
