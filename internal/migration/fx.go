package migration

import (
	"context"

	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, dbCfg db.Config, cfg config.Config, clk clock.Clock, log *zap.Logger) error {
		log = log.Named("migration")
		if db.IsPostgres(dbCfg) {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		promoted, err := PromoteAdmins(context.Background(), conn, cfg.Auth.AdminEmails, clk.Now())
		if err != nil {
			return err
		}
		if promoted > 0 {
			log.Info("admin accounts promoted", zap.Int64("count", promoted))
		}
		return nil
	}),
)
