package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sony/gobreaker"

	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []*ckafka.Message
	err      error
	closed   bool
}

func (f *fakeProducer) Produce(msg *ckafka.Message, deliveryChan chan ckafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Flush(int) int { return 0 }

func (f *fakeProducer) Close() { f.closed = true }

func TestAuditSink_Append(t *testing.T) {
	fp := &fakeProducer{}
	sink, err := newAuditSink(fp, Config{Topic: "vat-audit"}, nil)
	if err != nil {
		t.Fatalf("newAuditSink: %v", err)
	}

	rec := &model.AuditRecord{ExecutionID: "exec_1", RuleID: "vat_calculate_amount", RuleVersion: 2}
	if err := sink.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	sink.Close()

	if !fp.closed {
		t.Errorf("producer not closed")
	}
	if len(fp.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(fp.messages))
	}
	msg := fp.messages[0]
	if *msg.TopicPartition.Topic != "vat-audit" || string(msg.Key) != "exec_1" {
		t.Errorf("unexpected routing topic=%s key=%s", *msg.TopicPartition.Topic, msg.Key)
	}
	var decoded model.AuditRecord
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not an audit record: %v", err)
	}
	if decoded.RuleID != "vat_calculate_amount" || decoded.RuleVersion != 2 {
		t.Errorf("unexpected payload %+v", decoded)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[1].Value) != "2" {
		t.Errorf("unexpected headers %v", msg.Headers)
	}
}

func TestAuditSink_BreakerOpensAfterFailures(t *testing.T) {
	fp := &fakeProducer{err: errors.New("queue full")}
	sink, err := newAuditSink(fp, Config{
		Topic: "vat-audit",
		CircuitBreaker: gobreaker.Settings{
			Name:    "test",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 2
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newAuditSink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := sink.Append(ctx, &model.AuditRecord{ExecutionID: "exec"}); err == nil {
			t.Fatalf("attempt %d: expected produce error", i)
		}
	}
	err = sink.Append(ctx, &model.AuditRecord{ExecutionID: "exec"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestNewAuditSink_RequiresTopic(t *testing.T) {
	if _, err := newAuditSink(&fakeProducer{}, Config{}, nil); err == nil {
		t.Fatalf("expected error without topic")
	}
}
