package advance

import (
	"github.com/smallbiznis/backoffice/internal/advance/repository"
	"github.com/smallbiznis/backoffice/internal/advance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("advance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
