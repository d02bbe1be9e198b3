package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"GomafiaSync/internal/api"
	"GomafiaSync/internal/config"
	"GomafiaSync/internal/metrics"
	"GomafiaSync/internal/repository"
	"GomafiaSync/internal/service"
	"GomafiaSync/internal/telemetry"
	"GomafiaSync/internal/utils/database"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	// 2. 初始化日志
	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logrus.InfoLevel)
	logrusLogger.Info("配置文件加载成功")

	// 3. 连接 PostgreSQL（库不存在则先创建再连），迁移表结构
	db, err := database.Open(&cfg.Postgres, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("连接PostgreSQL失败: %v", err)
	}
	logrusLogger.Info("数据库表结构检查完成（不存在则已创建）")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 链路追踪：未配置 OTLP 地址时只在进程内生成 trace_id
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logrusLogger.WithError(err).Warn("关闭链路追踪失败")
		}
	}()

	// 4. 组装服务
	m := metrics.NewManager()
	syncService := service.NewSyncService(db, logrusLogger, cfg, m)
	subjects := repository.NewSubjectRepository(db)
	timeline := service.NewTimelineService(subjects, repository.NewRatingRepository(db), logrusLogger)
	queryService := service.NewQueryService(subjects, timeline, logrusLogger)
	logrusLogger.WithField("on_conflict", cfg.Sync.OnConflict).Info("导入策略")

	// 5. 定时刷新已知玩家（可选）
	if cfg.Sync.Cron != "" {
		refresh := service.NewRefreshService(subjects, syncService, m, cfg.Sync.RefreshLimit, logrusLogger)
		stopCron, err := refresh.Schedule(ctx, cfg.Sync.Cron)
		if err != nil {
			logrusLogger.Fatalf("启动定时刷新失败: %v", err)
		}
		defer stopCron()
	}

	// 6. 配置Gin运行模式（从配置读取：debug/release）
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	logrusLogger.Infof("Gin运行模式: %s", cfg.Server.Mode)

	// 7. 注册API路由
	api.RegisterRoutes(r, api.NewSyncHandler(syncService, logrusLogger), api.NewSubjectHandler(queryService, logrusLogger), m)

	// 8. 启动服务（从配置读取端口），收到信号后优雅退出
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
	go func() {
		logrusLogger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrusLogger.Fatalf("启动服务失败: %v", err)
		}
	}()

	<-ctx.Done()
	logrusLogger.Info("收到退出信号，正在关闭服务…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrusLogger.WithError(err).Error("关闭服务失败")
	}
}
