package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mouthsync/internal/history"
)

var errHistoryDisabled = errors.New("run history is disabled (history.enabled = false)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the run journal",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func (c *commandContext) withHistory(fn func(store *history.Store) error) error {
	store, err := c.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFlags []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]history.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := history.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, runViews(runs))
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunTable(runs, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status: running, finished, cancelled, rejected")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run; the id may be abbreviated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.FindByPrefix(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, newRunView(run))
				}
				fmt.Fprint(cmd.OutOrStdout(), renderRunDetail(run, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	var abandoned bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.History.RetentionDays
			}
			return ctx.withHistory(func(store *history.Store) error {
				if abandoned {
					n, err := store.MarkAbandoned(cmd.Context(), "marked abandoned by history prune")
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Marked %d abandoned run(s) cancelled\n", n)
				}
				if days <= 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Retention disabled; nothing pruned")
					return nil
				}
				n, err := store.PruneOlderThan(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) older than %d days\n", n, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default from config)")
	cmd.Flags().BoolVar(&abandoned, "abandoned", false, "Also mark runs stuck in running as cancelled")
	return cmd
}

// runView is the JSON shape of a journal entry.
type runView struct {
	RunID      string   `json:"run_id"`
	Status     string   `json:"status"`
	Mode       string   `json:"mode"`
	RigPath    string   `json:"rig_path"`
	AudioFile  string   `json:"audio_file"`
	DialogFile string   `json:"dialog_file,omitempty"`
	Recognizer string   `json:"recognizer"`
	Cues       int      `json:"cues"`
	Keys       int      `json:"keys"`
	Holds      int      `json:"holds"`
	FirstFrame int      `json:"first_frame"`
	LastFrame  int      `json:"last_frame"`
	Unmapped   []string `json:"unmapped,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

func newRunView(run *history.Run) runView {
	view := runView{
		RunID:      run.RunID,
		Status:     string(run.Status),
		Mode:       run.Mode,
		RigPath:    run.RigPath,
		AudioFile:  run.AudioFile,
		DialogFile: run.DialogFile,
		Recognizer: run.Recognizer,
		Cues:       run.CueCount,
		Keys:       run.KeyCount,
		Holds:      run.HoldCount,
		FirstFrame: run.FirstFrame,
		LastFrame:  run.LastFrame,
		Unmapped:   run.Unmapped,
		Error:      run.ErrorText,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		DurationMS: run.Duration().Milliseconds(),
	}
	if !run.FinishedAt.IsZero() {
		view.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return view
}

func runViews(runs []*history.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	return views
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderRunTable(runs []*history.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			shortID(run.RunID),
			string(run.Status),
			run.Mode,
			filepath.Base(run.AudioFile),
			strconv.Itoa(run.CueCount),
			strconv.Itoa(run.KeyCount),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			duration,
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Mode", "Audio", "Cues", "Keys", "Started", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
	)
}

func renderRunDetail(run *history.Run, now time.Time) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-12s %s\n", label+":", value)
	}
	line("Run", run.RunID)
	line("Status", string(run.Status))
	line("Mode", run.Mode)
	line("Rig", run.RigPath)
	line("Audio", run.AudioFile)
	line("Dialog", run.DialogFile)
	line("Recognizer", run.Recognizer)
	line("Started", fmt.Sprintf("%s (%s)", run.StartedAt.Local().Format(time.DateTime), humanize.RelTime(run.StartedAt, now, "ago", "from now")))
	if d := run.Duration(); d > 0 {
		line("Took", d.Round(time.Millisecond).String())
	}
	if run.Status == history.StatusFinished {
		line("Cues", strconv.Itoa(run.CueCount))
		line("Keys", fmt.Sprintf("%d (%d holds)", run.KeyCount, run.HoldCount))
		line("Frames", fmt.Sprintf("%d-%d", run.FirstFrame, run.LastFrame))
	}
	line("Unmapped", strings.Join(run.Unmapped, ", "))
	line("Error", run.ErrorText)
	return b.String()
}
