package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the transcription queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueAddURLCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				for _, raw := range listStatuses {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					if jobs == nil {
						jobs = []*queue.Job{}
					}
					data, err := json.MarshalIndent(jobs, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					duration := ""
					if job.DurationSeconds > 0 {
						duration = fmt.Sprintf("%.0fs", job.DurationSeconds)
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Identity,
						string(job.Status),
						duration,
						humanize.Time(job.UpdatedAt),
					})
				}
				tableStr := renderTable([]column{
					{header: "ID", numeric: true},
					{header: "Identity"},
					{header: "Status"},
					{header: "Duration", numeric: true},
					{header: "Updated"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), tableStr)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

// newQueueAddCommand copies media files into the queue directory. The next
// run discovers and drains them.
func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var move bool

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue local media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err != nil {
					return fmt.Errorf("inspect %q: %w", arg, err)
				}
				if info.IsDir() {
					return fmt.Errorf("%q is a directory", arg)
				}
				dest := filepath.Join(cfg.Paths.QueueDir, filepath.Base(arg))
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already queued", filepath.Base(arg))
				}
				if move {
					err = fileutil.MoveFile(arg, dest)
				} else {
					err = fileutil.CopyFile(arg, dest)
				}
				if err != nil {
					return fmt.Errorf("queue %q: %w", arg, err)
				}
				fmt.Fprintf(out, "Queued %s (%s)\n", filepath.Base(arg), humanize.IBytes(uint64(info.Size())))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&move, "move", false, "Move instead of copy")
	return cmd
}

// newQueueAddURLCommand appends URLs to the URL list file.
func newQueueAddURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-url <url>...",
		Short: "Queue URLs for download and transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.URLList == "" {
				return errors.New("no url_list configured")
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.URLList), 0o755); err != nil {
				return err
			}
			file, err := os.OpenFile(cfg.Paths.URLList, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer file.Close()

			out := cmd.OutOrStdout()
			for _, url := range args {
				if _, err := fmt.Fprintln(file, url); err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued %s\n", url)
			}
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Reset failed jobs for the next run",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove catalog jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var (
					removed int64
					err     error
					label   string
				)
				switch {
				case clearCompleted:
					removed, err = store.ClearCompleted(cmd.Context())
					label = "completed jobs"
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					label = "failed jobs"
				default:
					removed, err = store.Clear(cmd.Context())
					label = "jobs"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Roll interrupted jobs back to their stage start",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs\n", updated)
				return nil
			})
		},
	}
}
