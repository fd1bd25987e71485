package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mouthsync/internal/history"
	"mouthsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the analyzer, directories, notifications and run journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, configPath, colorize),
				renderStatusLine("Mode", statusInfo, cfg.Animation.Mode, colorize),
				renderStatusLine("Recognizer", statusInfo, cfg.Rhubarb.Recognizer, colorize),
			)

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			lines = append(lines, checkLines(results, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)

			notify := preflight.NotificationStatus(cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Integrations", colorize)...)
			lines = append(lines, renderStatusLine(notify.Name, statusInfo, notify.Detail, colorize))
			lines = append(lines, historyStatusLine(cmd, ctx, colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func historyStatusLine(cmd *cobra.Command, ctx *commandContext, colorize bool) string {
	store, err := ctx.openHistory()
	if err != nil {
		return renderStatusLine("History", statusError, err.Error(), colorize)
	}
	if store == nil {
		return renderStatusLine("History", statusInfo, "Disabled", colorize)
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return renderStatusLine("History", statusWarn, err.Error(), colorize)
	}
	parts := make([]string, 0, 4)
	for _, status := range []history.Status{history.StatusFinished, history.StatusCancelled, history.StatusRejected, history.StatusRunning} {
		parts = append(parts, fmt.Sprintf("%d %s", stats[status], status))
	}
	return renderStatusLine("History", statusOK, strings.Join(parts, ", "), colorize)
}
