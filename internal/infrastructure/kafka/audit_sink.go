package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sony/gobreaker"

	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

type Config struct {
	BootstrapServers string
	ClientID         string
	Topic            string
	DeliveryTimeout  time.Duration
	CircuitBreaker   gobreaker.Settings
}

// producer is the subset of *kafka.Producer the sink uses.
type producer interface {
	Produce(msg *ckafka.Message, deliveryChan chan ckafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// AuditSink publishes audit records to a topic, keyed by execution_id so all
// rows of one calculation land on the same partition in order.
type AuditSink struct {
	producer     producer
	deliveryChan chan ckafka.Event
	breaker      *gobreaker.CircuitBreaker
	cfg          Config
	logger       *slog.Logger
	done         chan struct{}
}

func NewAuditSink(cfg Config, logger *slog.Logger) (*AuditSink, error) {
	if cfg.BootstrapServers == "" {
		return nil, errors.New("kafka bootstrap servers are required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "service-vat"
	}
	p, err := ckafka.NewProducer(&ckafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"client.id":         cfg.ClientID,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return newAuditSink(p, cfg, logger)
}

func newAuditSink(p producer, cfg Config, logger *slog.Logger) (*AuditSink, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka audit topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DeliveryTimeout == 0 {
		cfg.DeliveryTimeout = 15 * time.Second
	}
	if cfg.CircuitBreaker.Name == "" {
		cfg.CircuitBreaker = gobreaker.Settings{
			Name:        "vat_audit_producer",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
		}
	}
	s := &AuditSink{
		producer:     p,
		deliveryChan: make(chan ckafka.Event, 128),
		breaker:      gobreaker.NewCircuitBreaker(cfg.CircuitBreaker),
		cfg:          cfg,
		logger:       logger,
		done:         make(chan struct{}),
	}
	go s.handleDeliveryReports()
	return s, nil
}

// Append enqueues rec for delivery. Delivery failures are reported
// asynchronously through the logger.
func (s *AuditSink) Append(ctx context.Context, rec *model.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	_, err = s.breaker.Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		topic := s.cfg.Topic
		msg := &ckafka.Message{
			TopicPartition: ckafka.TopicPartition{Topic: &topic, Partition: ckafka.PartitionAny},
			Key:            []byte(rec.ExecutionID),
			Value:          value,
			Timestamp:      rec.CreatedAt,
			Headers: []ckafka.Header{
				{Key: "rule_id", Value: []byte(rec.RuleID)},
				{Key: "rule_version", Value: []byte(strconv.Itoa(rec.RuleVersion))},
			},
		}
		return nil, s.producer.Produce(msg, s.deliveryChan)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("kafka audit sink unavailable: %w", err)
		}
		return fmt.Errorf("producing audit record: %w", err)
	}
	return nil
}

func (s *AuditSink) handleDeliveryReports() {
	defer close(s.done)
	for evt := range s.deliveryChan {
		switch m := evt.(type) {
		case *ckafka.Message:
			if m.TopicPartition.Error != nil {
				s.logger.Error("audit record delivery failed",
					"topic", s.cfg.Topic,
					"execution_id", string(m.Key),
					"error", m.TopicPartition.Error,
				)
			}
		default:
			s.logger.Warn("unexpected kafka event", "event", evt.String())
		}
	}
}

// Close flushes pending records and closes the producer.
func (s *AuditSink) Close() {
	if s == nil || s.producer == nil {
		return
	}
	if remaining := s.producer.Flush(int(s.cfg.DeliveryTimeout.Milliseconds())); remaining > 0 {
		s.logger.Warn("audit records not flushed", "remaining", remaining)
	}
	close(s.deliveryChan)
	<-s.done
	s.producer.Close()
}
