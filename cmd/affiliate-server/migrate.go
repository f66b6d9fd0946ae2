package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	// withDB 加载配置并打开数据库，执行完毕后关闭
	withDB := func(fn func(db *gorm.DB, cfg *config.Config, log *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.Init(&cfg.Logger)
			defer func() { _ = logger.Sync() }()

			db, err := database.Open(&cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			return fn(db, cfg, log)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "执行全部未应用的迁移",
			RunE: withDB(func(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
				return database.RunMigrations(db, cfg.Database.Driver, log)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "回滚最近一次迁移",
			RunE: withDB(func(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
				return database.RollbackMigration(db, cfg.Database.Driver, log)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "查看当前迁移版本",
			RunE: withDB(func(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
				v, err := database.MigrationVersion(db, cfg.Database.Driver, log)
				if err != nil {
					return err
				}
				fmt.Printf("migration version: %d\n", v)
				return nil
			}),
		},
	)
	return cmd
}
