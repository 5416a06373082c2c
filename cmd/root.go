/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tasktrack",
	Short: "Task tracking API server",
	Long: `tasktrack serves a per-user task tracking API with an enforced
status lifecycle (pending -> in_progress -> completed).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	log := logger.New(os.Stdout, cfg.IsDev(), cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log
}
