package notify

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogSender records each message as an OTel log record. It is the sender used when no broker is
// configured, so notifications stay visible in the log pipeline.
type LogSender struct {
	logger otellog.Logger
	now    func() time.Time
}

// NewLogSender returns a sender over provider's "collab.notify" logger.
func NewLogSender(provider *sdklog.LoggerProvider) *LogSender {
	return NewLogSenderWithLogger(provider.Logger("collab.notify"))
}

// NewLogSenderWithLogger returns a sender over logger.
func NewLogSenderWithLogger(logger otellog.Logger) *LogSender {
	return &LogSender{logger: logger, now: time.Now}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	var rec otellog.Record
	rec.SetTimestamp(s.now().UTC())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(msg.Body))
	rec.AddAttributes(
		otellog.String("notify.to", msg.To),
		otellog.String("notify.subject", msg.Subject),
	)
	if msg.Kind != "" {
		rec.AddAttributes(otellog.String("notify.kind", msg.Kind))
	}
	if msg.ProjectID != "" {
		rec.AddAttributes(otellog.String("project_id", msg.ProjectID))
	}
	s.logger.Emit(ctx, rec)
	return nil
}
