// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/clean"
	"github.com/pdiddy/reference-engine/internal/container"
	"github.com/pdiddy/reference-engine/internal/convert"
	"github.com/pdiddy/reference-engine/pkg/types"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Normalize and chunk acquired sources",
	Long: `Clean converts acquired PDFs to Markdown, strips page furniture,
normalizes lists and tables, and writes cleaned documents with provenance
frontmatter. Documents above the token threshold are cut into chunks at
structural boundaries. Already-cleaned documents are skipped.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().String("sources-dir", "", "base directory for acquired sources (default: sources)")
	cleanCmd.Flags().String("cleaned-dir", "", "output directory for cleaned documents (default: cleaned)")
	cleanCmd.Flags().String("chunks-dir", "", "output directory for chunk files (default: chunks)")
	cleanCmd.Flags().Int("token-threshold", 0, "chunk documents above this many tokens (default 60000)")
	cleanCmd.Flags().String("compatibility", "", "model-family tag recorded on chunks (e.g. claude-200k)")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetInt("token-threshold")
	cfg := types.CleaningConfig{
		SourcesDir: flagOrConfig(cmd, "sources-dir", "cleaning.sources_dir", "sources"),
		CleanedDir: flagOrConfig(cmd, "cleaned-dir", "cleaning.cleaned_dir", "cleaned"),
		ChunksDir:  flagOrConfig(cmd, "chunks-dir", "cleaning.chunks_dir", "chunks"),
		Chunking: types.ChunkConfig{
			TokenThreshold: threshold,
			Compatibility:  flagOrConfig(cmd, "compatibility", "cleaning.chunking.compatibility", ""),
		},
	}

	paths, err := clean.RawPaths(cfg.SourcesDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No raw sources to clean.")
		return nil
	}

	paths, err = convertPDFs(paths)
	if err != nil {
		return err
	}

	result, results := clean.CleanBatch(cfg, paths, os.Stdout)

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()
	for _, res := range results {
		if err := st.SaveCleaningJob(cmd.Context(), &res.Job); err != nil {
			return fmt.Errorf("recording cleaning job for %s: %w", res.Doc.ID, err)
		}
	}

	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed cleaning", result.Failed)
	}
	return nil
}

// convertPDFs runs PDF sources through the containerized converter, leaving
// other formats untouched. With no PDFs present the converter is never built.
func convertPDFs(paths []string) ([]string, error) {
	hasPDF := false
	for _, p := range paths {
		if convert.NeedsConversion(p) {
			hasPDF = true
			break
		}
	}
	if !hasPDF {
		return paths, nil
	}

	runtime, err := container.DetectRuntime()
	if err != nil {
		return nil, fmt.Errorf("PDF sources present but no container runtime: %w", err)
	}
	converter, err := convert.NewMarkitdownConverter(runtime)
	if err != nil {
		return nil, err
	}

	result, out := convert.ConvertBatch(converter, paths, os.Stdout)
	if result.HasFailures() {
		return nil, fmt.Errorf("%d PDF(s) failed conversion", result.Failed)
	}
	return out, nil
}
