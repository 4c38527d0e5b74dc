package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"livecap/internal/daemon"
	"livecap/internal/history"
	"livecap/internal/logging"
	"livecap/internal/recorder"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record <streamer>",
		Short: "Run one streamer's capture loop in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, ok := cfg.Streamer(name); !ok {
				return fmt.Errorf("unknown streamer %q", name)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			base, err := ctx.logger()
			if err != nil {
				return err
			}
			logger, closer, err := logging.TaskLogger(base, cfg, name)
			if err != nil {
				return err
			}
			defer closer.Close()

			lock, err := daemon.AcquireTaskLock(cfg, name)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			rec, err := recorder.NewFromConfig(cfg, name, nil, store, logger)
			if err != nil {
				return err
			}
			result, err := rec.Run(signalCtx)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d attempt(s), %d segment(s), %s\n",
				result.RunID, result.Attempts, result.Segments, humanize.IBytes(uint64(max(result.Bytes, 0))))
			for _, file := range result.Files {
				fmt.Fprintf(out, "  %s\n", file)
			}
			if err != nil && errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Interrupted")
				return nil
			}
			return err
		},
	}
}
