// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/clean"
	"github.com/pdiddy/reference-engine/internal/ingest"
	"github.com/pdiddy/reference-engine/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Classify and commit cleaned documents as versioned references",
	Long: `Ingest reads cleaned documents, extracts metadata, classifies each as
an act, regulation, guidance, or case, and commits it to the temporal store.
Documents matching an existing reference merge as new versions; low-confidence
classifications route to the review queue instead of committing. Re-running
a batch is safe: committed documents merge idempotently.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("cleaned-dir", "", "directory of cleaned documents (default: cleaned)")
	ingestCmd.Flags().Float64("confidence-threshold", 0, "route classifications below this to review (default 0.7)")
	ingestCmd.Flags().Int("dedup-window-days", 0, "effective-date family window for duplicate merging (default 180)")
	ingestCmd.Flags().Int("workers", 0, "ingestion pool size (default: number of CPUs)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetFloat64("confidence-threshold")
	windowDays, _ := cmd.Flags().GetInt("dedup-window-days")
	workers, _ := cmd.Flags().GetInt("workers")

	cleanedDir := flagOrConfig(cmd, "cleaned-dir", "cleaning.cleaned_dir", "cleaned")
	docs, err := clean.LoadCleaned(cleanedDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No cleaned documents to ingest.")
		return nil
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := types.IngestionConfig{
		ConfidenceThreshold: threshold,
		DedupWindowDays:     windowDays,
		Workers:             workers,
	}
	pipeline := ingest.NewPipeline(st, cfg)

	job, err := pipeline.Run(cmd.Context(), docs, os.Stdout)
	if err != nil {
		return err
	}
	if job.Status == types.StatusFailed {
		return fmt.Errorf("ingestion job %s failed: no documents committed", job.ID)
	}
	return nil
}
