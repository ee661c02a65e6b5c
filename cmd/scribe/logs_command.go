package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/logtail"
	"scribe/internal/queue"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <jobID>",
		Short: "Show a job's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if job.JobLogPath == "" {
					return fmt.Errorf("job %d has no log yet", id)
				}

				out := cmd.OutOrStdout()
				lines, offset, err := logtail.LastLines(job.JobLogPath, limit)
				if err != nil {
					return err
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}

				followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				for {
					lines, offset, err = logtail.Wait(followCtx, job.JobLogPath, offset, time.Minute)
					if err != nil {
						// Interrupt ends the follow, not the command.
						return nil
					}
					for _, line := range lines {
						fmt.Fprintln(out, line)
					}
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing as the log grows")
	return cmd
}
