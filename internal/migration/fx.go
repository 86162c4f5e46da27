package migration

import (
	"github.com/smallbiznis/servicehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		switch cfg.Type {
		case "sqlite":
			return ApplySQLiteSchema(conn)
		case "mysql":
			log.Warn("schema migrations are managed externally for mysql")
			return nil
		default:
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
	}),
)
