// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/watch"
	"github.com/pdiddy/reference-engine/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox and acquire dropped source descriptors",
	Long: `Watch monitors sources/inbox for descriptor YAML files. Each dropped
file is parsed and its sources acquired through the strategy chain, then the
file moves to inbox/processed. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("sources-dir", "", "base directory for acquired sources (default: sources)")
	watchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	watchCmd.Flags().Duration("attempt-timeout", 0, "per-strategy attempt timeout (default 2m)")
	watchCmd.Flags().Float64("rps", 0, "outbound requests per second (default 1)")
	watchCmd.Flags().String("rendered-image", "", "container image for rendered-browser fetching")
	watchCmd.Flags().String("transcriber-image", "", "container image for transcript generation")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	acquirer, cfg := newAcquirer(cmd)

	handler := func(ctx context.Context, src types.SourceDescriptor) error {
		job, _, err := acquirer.AcquireSource(ctx, st, src, os.Stdout)
		if err != nil {
			return err
		}
		if job != nil && job.Status == types.StatusFailed {
			return fmt.Errorf("acquisition failed: %s", job.Remediation)
		}
		return nil
	}

	inbox := filepath.Join(cfg.SourcesDir, "inbox")
	watcher := watch.New(inbox, handler, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
