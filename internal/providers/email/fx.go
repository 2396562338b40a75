package email

import (
	"context"
	"fmt"

	"github.com/smallbiznis/backoffice/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig selects the provider named by NOTIFY_PROVIDER. Any other
// value, including "log", yields the no-op provider.
func NewFromConfig(cfg config.Config) (Provider, error) {
	switch cfg.Notify.Provider {
	case "smtp":
		if cfg.Notify.SMTPHost == "" {
			return nil, fmt.Errorf("smtp provider requires SMTP_HOST")
		}
		return NewSMTP(Config{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.SMTPFrom,
		}), nil
	case "ses":
		if cfg.Notify.SESFrom == "" {
			return nil, fmt.Errorf("ses provider requires SES_FROM")
		}
		return NewSES(context.Background(), cfg.Notify.SESRegion, cfg.Notify.SESFrom)
	default:
		return &NoOpProvider{}, nil
	}
}
