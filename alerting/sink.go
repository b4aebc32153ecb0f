package alerting

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event describes a critical validation failure worth surfacing to operators.
// UserId/UserName identify who submitted the rejected payload, when the
// caller's context carries them.
type Event struct {
	Severity      string                 `json:"severity"`
	Table         string                 `json:"table"`
	Violations    []utils.FieldViolation `json:"violations"`
	UserId        int                    `json:"user_id,omitempty"`
	UserName      string                 `json:"user_name,omitempty"`
	Username      string                 `json:"username,omitempty"`
	CorrelationId string                 `json:"correlation_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Sink receives critical validation failures. Implementations must be safe
// for concurrent use. Raising an alert is always best-effort: a sink error
// must never fail the operation that produced the event.
type Sink interface {
	Raise(ctx context.Context, event Event) error
}

var (
	sinkMu sync.RWMutex
	sink   Sink = LogSink{}
)

// SetSink replaces the process-wide sink (e.g. with PubSubSink in main).
func SetSink(s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s != nil {
		sink = s
	}
}

// Raise forwards the event to the configured sink. Errors are logged and
// swallowed.
func Raise(ctx context.Context, severity string, table string, violations []utils.FieldViolation) {
	event := Event{
		Severity:      severity,
		Table:         table,
		Violations:    violations,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		OccurredAt:    time.Now().UTC(),
	}
	if ctx != nil {
		if id, ok := utils.GetUserIdFromContext(ctx); ok {
			event.UserId = id
		}
		if name, ok := utils.GetUserNameFromContext(ctx); ok {
			event.UserName = name
		}
		if login, ok := utils.GetUsernameFromContext(ctx); ok {
			event.Username = login
		}
	}

	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()

	if err := s.Raise(ctx, event); err != nil {
		config.LogError(config.GetLogger(), "alerting", "Raise", "failed to raise alert", event, err)
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// LogSink writes alerts to the global logrus logger. Default sink.
type LogSink struct{}

func (LogSink) Raise(_ context.Context, event Event) error {
	config.GetLogger().WithFields(logrus.Fields{
		"module":         "alerting",
		"table":          event.Table,
		"severity":       event.Severity,
		"violations":     event.Violations,
		"correlation_id": event.CorrelationId,
	}).Error("critical validation failure")
	return nil
}

// PubSubSink publishes alerts to the configured Pub/Sub topic so the
// notification service (SMS/WhatsApp delivery) can pick them up.
type PubSubSink struct{}

func (PubSubSink) Raise(ctx context.Context, event Event) error {
	_, err := config.PublishValidationAlert(ctx, event)
	return err
}
