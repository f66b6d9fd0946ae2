package database

import (
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/migrations"
)

// gooseLogger 将 goose 输出转到 zap
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

func gooseDialect(driver string) string {
	if driver == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}

func prepareGoose(driver string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log: log.Named("goose").Sugar()})
	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return fmt.Errorf("设置迁移方言失败: %w", err)
	}
	return nil
}

// RunMigrations 执行全部未应用的迁移
func RunMigrations(db *gorm.DB, driver string, log *zap.Logger) error {
	if err := prepareGoose(driver, log); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("执行迁移失败: %w", err)
	}
	return nil
}

// RollbackMigration 回滚最近一次迁移
func RollbackMigration(db *gorm.DB, driver string, log *zap.Logger) error {
	if err := prepareGoose(driver, log); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := goose.Down(sqlDB, "."); err != nil {
		return fmt.Errorf("回滚迁移失败: %w", err)
	}
	return nil
}

// MigrationVersion 当前已应用的迁移版本
func MigrationVersion(db *gorm.DB, driver string, log *zap.Logger) (int64, error) {
	if err := prepareGoose(driver, log); err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	return goose.GetDBVersion(sqlDB)
}
