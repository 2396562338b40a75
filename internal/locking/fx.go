package locking

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/backoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("locking",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func NewLocker(p Params) Locker {
	if p.Config.LockBackend == config.BackendRedis {
		if p.Redis != nil {
			return NewRedisLocker(p.Redis, p.Config.LockTTL)
		}
		p.Log.Warn("redis lock backend requested without REDIS_ADDRESS, using in-process locks")
	}
	return NewLocalLocker()
}
