package serviceorder

import (
	"github.com/smallbiznis/backoffice/internal/serviceorder/repository"
	"github.com/smallbiznis/backoffice/internal/serviceorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("serviceorder.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
