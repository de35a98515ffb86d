package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/config"
	"github.com/xxxsen/csassist/internal/warehouse"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "csassist",
		Short: "cs department chat assistant",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "open the warehouse session and probe the knowledge table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return ping(cmd.Context(), cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, pingCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func ping(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	opener, err := warehouse.NewOpener(cfg.Warehouse)
	if err != nil {
		return err
	}
	session := warehouse.NewSession(opener)
	defer session.Close()

	db, err := session.DB(ctx)
	if err != nil {
		return fmt.Errorf("open warehouse session: %w", err)
	}
	var count int64
	// table path is validated by config.Load
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+cfg.Knowledge.Table); err != nil {
		return fmt.Errorf("probe %s: %w", cfg.Knowledge.Table, err)
	}
	fmt.Fprintf(os.Stdout, "warehouse=%s table=%s rows=%d\n", cfg.Warehouse.Type, cfg.Knowledge.Table, count)
	return nil
}
