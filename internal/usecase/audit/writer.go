package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
)

// Entry is one rule execution to be recorded.
type Entry struct {
	ExecutionID  string
	CartID       *string
	OrderID      *string
	RuleID       string
	RuleVersion  int
	InputContext any
	OutputData   any
	DurationMs   *int64
}

// Recorder records entries without ever failing the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Writer appends each entry to a sink exactly once; failures are logged and
// swallowed, never retried.
type Writer struct {
	sink   interfaces.AuditSink
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(sink interfaces.AuditSink, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{sink: sink, logger: logger, now: time.Now}
}

// Write appends e and reports failures wrapped in domain.ErrAuditWrite.
func (w *Writer) Write(ctx context.Context, e Entry) error {
	rec, err := ToRecord(e, w.now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuditWrite, err)
	}
	if err := w.sink.Append(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuditWrite, err)
	}
	return nil
}

func (w *Writer) Record(ctx context.Context, e Entry) {
	if err := w.Write(ctx, e); err != nil {
		w.logger.Error("audit write failed",
			"execution_id", e.ExecutionID,
			"rule_id", e.RuleID,
			"rule_version", e.RuleVersion,
			"error", err,
		)
	}
}

func ToRecord(e Entry, createdAt time.Time) (*model.AuditRecord, error) {
	input, err := json.Marshal(e.InputContext)
	if err != nil {
		return nil, fmt.Errorf("encode input_context: %w", err)
	}
	output, err := json.Marshal(e.OutputData)
	if err != nil {
		return nil, fmt.Errorf("encode output_data: %w", err)
	}
	return &model.AuditRecord{
		ExecutionID:  e.ExecutionID,
		CartID:       e.CartID,
		OrderID:      e.OrderID,
		RuleID:       e.RuleID,
		RuleVersion:  e.RuleVersion,
		InputContext: datatypes.JSON(input),
		OutputData:   datatypes.JSON(output),
		DurationMs:   e.DurationMs,
		CreatedAt:    createdAt,
	}, nil
}

type job struct {
	ctx   context.Context
	entry Entry
}

// AsyncWriter hands entries to a single background consumer, so records of one
// execution keep their order. Close drains the queue.
type AsyncWriter struct {
	writer *Writer
	queue  chan job
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncWriter(w *Writer, size int) *AsyncWriter {
	if size <= 0 {
		size = 256
	}
	a := &AsyncWriter{
		writer: w,
		queue:  make(chan job, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncWriter) run() {
	defer close(a.done)
	for j := range a.queue {
		a.writer.Record(j.ctx, j.entry)
	}
}

// Record enqueues e. It blocks while the queue is full and drops the entry if
// ctx ends first or the writer is closed.
func (a *AsyncWriter) Record(ctx context.Context, e Entry) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.writer.logger.Warn("audit entry dropped: writer closed", "execution_id", e.ExecutionID, "rule_id", e.RuleID)
		return
	}
	select {
	case a.queue <- job{ctx: context.WithoutCancel(ctx), entry: e}:
	case <-ctx.Done():
		a.writer.logger.Warn("audit entry dropped", "execution_id", e.ExecutionID, "rule_id", e.RuleID, "error", ctx.Err())
	}
}

func (a *AsyncWriter) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
