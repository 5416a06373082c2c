/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/server"
)

var (
	serverPort   int
	serverMemory bool
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the task tracking API",
	Long: `Run the task tracking API until interrupted.

	tasktrack server
	tasktrack server --port 9000
	tasktrack server --memory    # no PostgreSQL, data is lost on exit
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		if cmd.Flags().Changed("port") {
			cfg.ServerPort = serverPort
		}
		if serverMemory {
			cfg.Database.Driver = config.DriverMemory
		}

		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}
		log.Info("starting server",
			slog.Int("port", cfg.ServerPort),
			slog.String("db_driver", cfg.Database.Driver),
			slog.String("mq_backend", cfg.MQ.Backend),
		)
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "listen port (overrides SERVER_PORT)")
	serverCmd.Flags().BoolVar(&serverMemory, "memory", false, "use in-memory storage")
}
