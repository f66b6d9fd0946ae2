package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/cache"
	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/tracing"
	"github.com/dumeirei/affiliate-backend/internal/scheduler"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	"github.com/dumeirei/affiliate-backend/pkg/mailer"
)

// app 进程内共享的依赖
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	redis    redis.Cmdable
	jwt      *jwt.Manager
	metrics  *metrics.Metrics
	services *affiliateService.Services
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newJWTManager(cfg *config.JWTConfig) *jwt.Manager {
	return jwt.NewManager(&jwt.Config{
		Secret:           cfg.Secret,
		AccessExpireTime: cfg.AccessTokenDuration(),
		Issuer:           cfg.Issuer,
	})
}

// newMailSender 按配置选择发件通道
func newMailSender(cfg *config.MailConfig, rdb redis.Cmdable, log *zap.Logger) mailer.Sender {
	if cfg.Driver == "log" {
		return mailer.NewLogSender(log.Named("mailer"))
	}
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = cache.BuildKey(cache.KeyPrefixMail, "outbox")
	}
	return mailer.NewRedisQueueSender(rdb, queueKey)
}

// newApp 组装服务依赖
func newApp(cfg *config.Config, log *zap.Logger, db *gorm.DB, rdb redis.Cmdable) *app {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	notifier := mailer.NewAffiliateMailer(
		newMailSender(&cfg.Mail, rdb, log),
		cfg.Mail.FromName,
		cfg.Mail.FromEmail,
	)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rdb,
		jwt:      newJWTManager(&cfg.JWT),
		metrics:  m,
		services: affiliateService.NewServices(db, notifier, &cfg.Business.Affiliate, m, log.Named("affiliate")),
	}
}

// newScheduler 注册后台定时任务
func newScheduler(a *app) *scheduler.Scheduler {
	s := scheduler.New(a.log)
	s.AddTask("refresh_commission_tiers", a.cfg.Business.Affiliate.TierRefreshInterval(), func(ctx context.Context) error {
		_, err := a.services.Ledger.RefreshDisplayedTiers(ctx)
		return err
	})
	return s
}

func setGinMode(mode string) {
	switch mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.Init(&cfg.Logger)
	defer func() { _ = logger.Sync() }()

	log.Info("Starting affiliate backend",
		zap.String("version", version),
		zap.String("mode", cfg.Server.Mode),
	)

	tp, err := tracing.Init(ctx, &cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, cfg.Database.Driver, log); err != nil {
			return err
		}
	}

	rdb, err := cache.Open(&cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))

	setGinMode(cfg.Server.Mode)
	a := newApp(cfg, log, db, rdb)

	tasks := newScheduler(a)
	tasks.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(a),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
		tasks.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	tasks.Stop()
	// 等待已发出的审核邮件投递完成
	a.services.Registry.WaitNotifications()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracing shutdown failed", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
