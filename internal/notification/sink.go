package notification

import (
	"context"

	"github.com/smallbiznis/backoffice/internal/providers/email"
	"go.uber.org/zap"
)

// Sink delivers one event. Errors are reported to the Dispatcher, which
// logs and drops them.
type Sink interface {
	Name() string
	Notify(ctx context.Context, evt Event) error
}

type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("notification.log")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(ctx context.Context, evt Event) error {
	s.log.Info("notification",
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.Time("occurred_at", evt.OccurredAt),
		zap.Strings("recipients", evt.Recipients),
		zap.Any("data", evt.Data),
	)
	return nil
}

// EmailSink renders the event and hands it to an email provider.
type EmailSink struct {
	provider email.Provider
	log      *zap.Logger
}

func NewEmailSink(provider email.Provider, log *zap.Logger) *EmailSink {
	return &EmailSink{provider: provider, log: log.Named("notification.email")}
}

func (s *EmailSink) Name() string { return s.provider.Name() }

func (s *EmailSink) Notify(ctx context.Context, evt Event) error {
	if len(evt.Recipients) == 0 {
		s.log.Debug("notification without recipients skipped",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
		)
		return nil
	}
	subject, body, err := Render(evt)
	if err != nil {
		return err
	}
	return s.provider.Send(ctx, evt.Recipients, subject, "", body)
}
