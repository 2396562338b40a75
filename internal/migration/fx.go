package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module brings the schema up to date while the app is constructed, ahead
// of any start hook that reads or seeds tables.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}),
)
