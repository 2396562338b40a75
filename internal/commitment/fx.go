package commitment

import (
	"github.com/smallbiznis/backoffice/internal/commitment/repository"
	"github.com/smallbiznis/backoffice/internal/commitment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commitment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
