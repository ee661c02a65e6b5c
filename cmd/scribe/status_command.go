package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/preflight"
	"scribe/internal/queue"
	"scribe/internal/resource"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, queue, and resource status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderSectionHeader("Configuration", colorize))
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Model", statusInfo, cfg.Transcription.Model, colorize))
				fmt.Fprintln(out, renderStatusLine("Chunk threshold", statusInfo,
					fmt.Sprintf("%ds", cfg.Transcription.ChunkSeconds), colorize))

				fmt.Fprintln(out, renderSectionHeader("Queue", colorize))
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", health.Total), colorize))
				fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", health.Pending), colorize))
				fmt.Fprintln(out, renderStatusLine("Processing", statusInfo, fmt.Sprintf("%d", health.Processing), colorize))
				fmt.Fprintln(out, renderStatusLine("Completed", statusOK, fmt.Sprintf("%d", health.Completed), colorize))
				failedKind := statusOK
				if health.Failed > 0 {
					failedKind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", health.Failed), colorize))

				printResources(out, cfg, colorize)

				fmt.Fprintln(out, renderSectionHeader("Tools", colorize))
				for _, status := range deps.CheckBinaries(cmd.Context(), deps.Requirements(cfg)) {
					kind := statusOK
					if !status.Available {
						kind = statusError
						if status.Optional {
							kind = statusInfo
						}
					}
					fmt.Fprintln(out, renderStatusLine(status.Name, kind, status.Detail, colorize))
				}

				fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
				for _, check := range preflight.Run(cmd.Context(), cfg) {
					kind := statusOK
					detail := ""
					if !check.Ready {
						kind = statusError
						detail = check.Detail
					}
					fmt.Fprintln(out, renderStatusLine(check.Name, kind, detail, colorize))
				}
				return nil
			})
		},
	}
}

func printResources(out io.Writer, cfg *config.Config, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Resources", colorize))
	fmt.Fprintln(out, renderStatusLine("Gate", statusInfo, yesNo(cfg.Resources.Enabled), colorize))

	sample, err := resource.ReadMemory()
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Memory", statusError, err.Error(), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Free RAM", statusInfo, humanize.IBytes(sample.FreeRAMBytes), colorize))
		fmt.Fprintln(out, renderStatusLine("Swap used", statusInfo, humanize.IBytes(sample.SwapUsedBytes), colorize))
	}

	free, err := resource.FreeDisk(cfg.Paths.WorkDir)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Free disk", statusError, err.Error(), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Free disk", statusInfo, humanize.IBytes(free), colorize))
	}
}
