package fee

import (
	"context"

	"github.com/smallbiznis/backoffice/internal/fee/domain"
	"github.com/smallbiznis/backoffice/internal/fee/repository"
	"github.com/smallbiznis/backoffice/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(registerDefaults),
)

func registerDefaults(lc fx.Lifecycle, svc domain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.EnsureDefault(ctx)
			return err
		},
	})
}
