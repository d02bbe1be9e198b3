package commands

import (
	"context"
	"fmt"
	"os"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/telemetry"
	"GomafiaSync/internal/utils/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	configPath *string
	verbose    *bool
)

var tel *telemetry.Telemetry

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "importctl imports gomafia player histories and inspects what is stored.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config/config.yaml", "Path to the YAML config.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging.")
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	// 失败的导入也要把 span 刷出去
	if serr := tel.Shutdown(context.WithoutCancel(ctx)); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env 子命令共用的配置、日志和数据库
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if tel, err = telemetry.Setup(ctx, cfg.Telemetry, logger); err != nil {
		return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	db, err := database.Open(&cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}
