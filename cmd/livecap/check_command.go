package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"livecap/internal/probe"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [streamer...]",
		Short: "Probe streamers and list the ones currently live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = cfg.StreamerNames()
			}

			targets := make([]probe.Target, 0, len(names))
			for _, name := range names {
				s, ok := cfg.Streamer(name)
				if !ok {
					return fmt.Errorf("unknown streamer %q", name)
				}
				targets = append(targets, probe.Target{
					Name:         name,
					URL:          s.URL,
					Platform:     s.Platform,
					Headers:      cfg.Headers(name),
					DownloadMode: s.DownloadMode,
				})
			}

			registry := probe.Default(nil)
			live := make(map[string]bool, len(targets))
			for target := range registry.Live(cmd.Context(), targets) {
				live[target.Name] = true
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			rows := make([][]string, 0, len(targets))
			for _, t := range targets {
				rows = append(rows, []string{t.Name, t.Platform, yesNo(live[t.Name]), t.URL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Streamer", "Platform", "Live", "URL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
