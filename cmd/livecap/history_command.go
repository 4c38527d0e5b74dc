package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"livecap/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var task string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded capture runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var runs []*history.Run
			if task != "" {
				runs, err = store.ForTask(cmd.Context(), task, limit)
			} else {
				runs, err = store.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&task, "task", "", "Only show runs for this streamer")
	return cmd
}

func renderHistoryTable(runs []*history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Task,
			string(r.Outcome),
			strconv.Itoa(r.Attempts),
			strconv.Itoa(r.Segments),
			humanize.IBytes(uint64(max(r.BytesCaptured, 0))),
			r.Duration().Round(time.Second).String(),
		})
	}
	return renderTable(
		[]string{"Started", "Streamer", "Outcome", "Attempts", "Segments", "Size", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
