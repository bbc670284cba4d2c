package audit

import (
	"time"

	"github.com/ruralpay/txengine/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AuditEvent struct {
	Timestamp time.Time `json:"event_time"`
	EventType string    `json:"event_type"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type,omitempty"`
	Client    uint16    `json:"client"`
	Tx        uint32    `json:"tx"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
}

// AuditLogger writes one structured entry per processed transaction.
// Applied transactions go out at debug, rejections at warn.
type AuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (a *AuditLogger) LogTransaction(runID string, tx models.Transaction, status string) {
	event := a.event("TRANSACTION", runID, tx, status)
	a.log(zapcore.DebugLevel, event)
}

func (a *AuditLogger) LogRejection(runID string, tx models.Transaction, status string, err error) {
	event := a.event("REJECTED", runID, tx, status)
	if err != nil {
		event.Details = err.Error()
	}
	a.log(zapcore.WarnLevel, event)
}

func (a *AuditLogger) LogError(runID string, err error) {
	event := AuditEvent{
		Timestamp: a.now(),
		EventType: "ERROR",
		RunID:     runID,
		Status:    "FAILED",
		Details:   err.Error(),
	}
	a.log(zapcore.WarnLevel, event)
}

func (a *AuditLogger) event(eventType, runID string, tx models.Transaction, status string) AuditEvent {
	event := AuditEvent{
		Timestamp: a.now(),
		EventType: eventType,
		RunID:     runID,
		Type:      string(tx.Type),
		Client:    tx.Client,
		Tx:        tx.Tx,
		Status:    status,
	}
	if tx.Amount != nil {
		event.Amount = tx.Amount.String()
	}
	return event
}

func (a *AuditLogger) log(level zapcore.Level, event AuditEvent) {
	ce := a.logger.Check(level, "AUDIT")
	if ce == nil {
		return
	}
	ce.Write(
		zap.Time("event_time", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("run_id", event.RunID),
		zap.String("type", event.Type),
		zap.Uint16("client", event.Client),
		zap.Uint32("tx", event.Tx),
		zap.String("amount", event.Amount),
		zap.String("status", event.Status),
		zap.String("details", event.Details),
	)
}
