// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/acquire"
	"github.com/pdiddy/reference-engine/internal/container"
	"github.com/pdiddy/reference-engine/internal/watch"
	"github.com/pdiddy/reference-engine/pkg/types"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultAttemptTimeout = 2 * time.Minute
	defaultUserAgent      = "reference-engine/0.1"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [descriptor-files...]",
	Short: "Download sources through the strategy fallback chain",
	Long: `Acquire reads source descriptor YAML files and downloads each source,
trying strategies in order: direct fetch, feed discovery, API endpoint,
rendered browser, and transcript acquisition for audio/video. Every attempt
is recorded; already-acquired sources are skipped.

Use --url to acquire a single source without a descriptor file.`,
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().String("url", "", "acquire a single URL instead of descriptor files")
	acquireCmd.Flags().String("type-hint", "", "expected reference type for --url (act, regulation, guidance, case, audio, video)")
	acquireCmd.Flags().String("sources-dir", "", "base directory for acquired sources (default: sources)")
	acquireCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	acquireCmd.Flags().Duration("attempt-timeout", 0, "per-strategy attempt timeout (default 2m)")
	acquireCmd.Flags().Float64("rps", 0, "outbound requests per second (default 1)")
	acquireCmd.Flags().String("rendered-image", "", "container image for rendered-browser fetching")
	acquireCmd.Flags().String("transcriber-image", "", "container image for transcript generation")

	rootCmd.AddCommand(acquireCmd)
}

// acquisitionConfig resolves acquisition settings from flags, config, and
// secrets.
func acquisitionConfig(cmd *cobra.Command) types.AcquisitionConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	attemptTimeout, _ := cmd.Flags().GetDuration("attempt-timeout")
	if attemptTimeout == 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	rps, _ := cmd.Flags().GetFloat64("rps")

	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		SourcesDir:        flagOrConfig(cmd, "sources-dir", "acquisition.sources_dir", "sources"),
		AttemptTimeout:    attemptTimeout,
		RequestsPerSecond: rps,
		RenderedImage:     flagOrConfig(cmd, "rendered-image", "acquisition.rendered_image", ""),
		TranscriberImage:  flagOrConfig(cmd, "transcriber-image", "acquisition.transcriber_image", ""),
		APIKey:            secretDefault("registry-api-key", ""),
	}
}

// newAcquirer assembles the strategy chain. A missing container runtime is
// not an error; the strategies that need one drop out of the chain.
func newAcquirer(cmd *cobra.Command) (*acquire.Acquirer, types.AcquisitionConfig) {
	cfg := acquisitionConfig(cmd)
	client := &http.Client{Timeout: cfg.Timeout}

	runtime, err := container.DetectRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no container runtime: rendered and transcript strategies disabled\n")
		runtime = nil
	}

	return acquire.New(client, runtime, cfg), cfg
}

func runAcquire(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	if url == "" && len(args) == 0 {
		return fmt.Errorf("provide descriptor files or --url")
	}

	var sources []types.SourceDescriptor
	if url != "" {
		hint, _ := cmd.Flags().GetString("type-hint")
		sources = append(sources, types.SourceDescriptor{URL: url, TypeHint: hint})
	}
	for _, path := range args {
		srcs, err := watch.LoadDescriptors(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, srcs...)
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	acquirer, _ := newAcquirer(cmd)
	result := acquirer.AcquireBatch(cmd.Context(), st, sources, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d source(s) failed acquisition", result.Failed)
	}
	return nil
}
