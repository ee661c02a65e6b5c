package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process everything in the queue, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.New(logging.Options{
					Level:       cfg.Logging.Level,
					Format:      cfg.Logging.Format,
					OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "scribe.log")},
				})
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				manager := workflow.NewManager(cfg, store, logger)
				summary, err := manager.Run(runCtx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"Enqueued %d, completed %d, failed %d\n",
					summary.Enqueued, summary.Completed, summary.Failed)
				return nil
			})
		},
	}
}
