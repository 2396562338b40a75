package tax

import (
	"github.com/smallbiznis/backoffice/internal/tax/repository"
	"github.com/smallbiznis/backoffice/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
