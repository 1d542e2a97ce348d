package authlink

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEvent records one association or session lifecycle change.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	AuthID    string            `json:"auth_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogrusSink writes audit events as structured log entries. Failed events
// are logged at warn level.
type LogrusSink struct {
	logger logrus.FieldLogger
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return &LogrusSink{logger: logger}
}

func (s *LogrusSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.logger == nil {
		return
	}

	fields := logrus.Fields{
		"audit":   event.EventType,
		"success": event.Success,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.AuthID != "" {
		fields["auth_id"] = event.AuthID
	}
	if event.IP != "" {
		fields["ip"] = event.IP
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := s.logger.WithFields(fields)
	if event.Success {
		entry.Info("audit event")
		return
	}
	entry.Warn("audit event")
}
