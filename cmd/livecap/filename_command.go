package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"livecap/internal/capture"
	"livecap/internal/naming"
)

func newFilenameCommand(ctx *commandContext) *cobra.Command {
	var title string
	var at string

	cmd := &cobra.Command{
		Use:   "filename <streamer>",
		Short: "Preview the output path a capture would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			s, ok := cfg.Streamer(name)
			if !ok {
				return fmt.Errorf("unknown streamer %q", name)
			}

			when := time.Now()
			if at != "" {
				when, err = time.ParseInLocation(time.DateTime, at, time.Local)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			base, err := naming.New(cfg.FilenameTemplate(name)).Format(name, title, when)
			if err != nil {
				return err
			}
			req := capture.Request{Output: filepath.Join(cfg.Paths.WorkDir, base), Suffix: s.Suffix}
			fmt.Fprintln(cmd.OutOrStdout(), req.FinalPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Room title substituted for {title}")
	cmd.Flags().StringVar(&at, "at", "", "Capture start time (YYYY-MM-DD HH:MM:SS, local)")
	return cmd
}
