package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/logger"
)

// KafkaProducer fans security events out to a Kafka topic.
type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaProducer creates the Kafka audit sink.
func NewKafkaProducer(cfg *config.KafkaConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaProducer{
		writer: writer,
		logger: log.WithComponent("KafkaAudit"),
	}
}

// RecordEvent publishes the event, keyed by user so one user's signals land
// on one partition.
func (p *KafkaProducer) RecordEvent(ctx context.Context, event *models.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "Failed to marshal audit event", err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil {
		p.logger.Error(ctx, "Failed to publish audit event", err, logger.Fields{
			"event_type": event.EventType,
		})
	}
	return err
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// fanOut sends each event to every configured sink. A failing sink does not
// stop the others; the first error is returned.
type fanOut struct {
	sinks []service.AuditService
}

// NewFanOut combines multiple audit sinks into one AuditService.
func NewFanOut(sinks ...service.AuditService) service.AuditService {
	return &fanOut{sinks: sinks}
}

func (f *fanOut) RecordEvent(ctx context.Context, event *models.SecurityEvent) error {
	var firstErr error
	for _, sink := range f.sinks {
		if err := sink.RecordEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
