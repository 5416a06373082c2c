/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasktrack/apiserver/internal/mq"
	"github.com/tasktrack/apiserver/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect task events on the message queue",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print task events as JSON lines until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("set MQ_BACKEND to rabbitmq or pubsub to tail events")
		}
		if err != nil {
			return err
		}
		defer queue.Close()

		enc := json.NewEncoder(os.Stdout)
		log.Info("tailing task events", slog.String("channel", cfg.MQ.Channel))
		err = mq.SubscribeTaskEvents(cmd.Context(), queue, cfg.MQ.Channel,
			func(_ context.Context, event types.TaskEvent) error {
				return enc.Encode(event)
			},
			func(msg mq.Message, err error) {
				log.Warn("skipping undecodable message", slog.String("id", msg.ID), slog.Any("error", err))
			},
		)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
