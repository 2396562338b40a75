package sequence

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/backoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("sequence",
	fx.Provide(NewCounter),
	fx.Provide(NewGenerator),
)

type CounterParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

// NewCounter selects the counter backend. The redis backend is used only when
// configured and a client is available.
func NewCounter(p CounterParams) Counter {
	orderSeed := MaxCodeSeed(p.DB, "service_orders", "code", "OS")
	invoiceSeed := MaxCodeSeed(p.DB, "invoices", "number", "FAT")

	if p.Config.SequenceBackend == config.BackendRedis && p.Redis != nil {
		p.Log.Info("sequence backend selected", zap.String("backend", config.BackendRedis))
		return NewRedisCounter(p.Redis).
			WithSeed(OrderCodes, orderSeed).
			WithSeed(InvoiceNumbers, invoiceSeed)
	}

	p.Log.Info("sequence backend selected", zap.String("backend", config.BackendDB))
	return NewGormCounter(p.DB).
		WithSeed(OrderCodes, orderSeed).
		WithSeed(InvoiceNumbers, invoiceSeed)
}
