package notification

import (
	"context"

	"github.com/smallbiznis/backoffice/internal/config"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(NewSink),
	fx.Provide(newDispatcher),
	fx.Provide(func(d *Dispatcher) Publisher { return d }),
)

// NewSink logs events unless an email provider was configured.
func NewSink(cfg config.Config, provider email.Provider, log *zap.Logger) Sink {
	switch cfg.Notify.Provider {
	case "smtp", "ses":
		return NewEmailSink(provider, log)
	default:
		return NewLogSink(log)
	}
}

type dispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Sink      Sink
	Log       *zap.Logger
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

func newDispatcher(p dispatcherParams) *Dispatcher {
	d := NewDispatcher(p.Sink, p.Log, DispatcherOptions{
		Async:   p.Config.Notify.Async,
		Timeout: p.Config.Notify.Timeout,
		Metrics: p.Metrics,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Drain(ctx)
		},
	})
	return d
}
