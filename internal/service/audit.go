package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/pkg/jobs"
)

// auditLogger is the sink every mutating service reports to. The concrete
// implementation may write synchronously or hand off to a background queue.
type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditLoggerFunc allows plain functions as audit sinks.
type AuditLoggerFunc func(ctx context.Context, log *models.AuditLog) error

// CreateAuditLog implements auditLogger.
func (f AuditLoggerFunc) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return f(ctx, log)
}

func emitAudit(ctx context.Context, sink auditLogger, logger *zap.Logger, log *models.AuditLog) {
	if sink == nil || log == nil {
		return
	}
	if err := sink.CreateAuditLog(ctx, log); err != nil && logger != nil {
		logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// AsyncAuditSink hands audit records to a background worker pool so request
// latency never includes the audit write. Records are retried by the queue
// and dropped with a log line when retries are exhausted.
type AsyncAuditSink struct {
	queue *jobs.Queue
}

// NewAsyncAuditSink builds a sink that persists through the given store.
func NewAsyncAuditSink(store auditLogger, cfg jobs.QueueConfig) *AsyncAuditSink {
	queue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		log, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return nil
		}
		return store.CreateAuditLog(ctx, log)
	}, cfg)
	return &AsyncAuditSink{queue: queue}
}

// Start launches the worker pool.
func (s *AsyncAuditSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AsyncAuditSink) Stop() {
	s.queue.Stop()
}

// CreateAuditLog implements auditLogger by enqueueing the record.
func (s *AsyncAuditSink) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "audit_log",
		Payload: log,
	})
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
