// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/store"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Retrieve references, version history, and pinpoints",
}

// --- get subcommand ---

var referenceGetCmd = &cobra.Command{
	Use:   "get [reference-id]",
	Short: "Retrieve a reference's text, current or as of a date",
	Long: `Get prints the reference's full text as effective today, or as
effective on the --as-of date. A date outside the reference's version
coverage reports the covered range instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runReferenceGet,
}

func runReferenceGet(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag(cmd, "as-of")
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ref, version, err := st.Retrieve(cmd.Context(), args[0], asOf)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"reference": ref,
			"version":   version,
		})
	}

	fmt.Printf("%s (%s)\n", ref.Title, ref.Type)
	if ref.Body != "" {
		fmt.Printf("Body: %s\n", ref.Body)
	}
	if ref.SourceURL != "" {
		status := ""
		if !ref.URLValid {
			status = " (link dead)"
		}
		fmt.Printf("Source: %s%s\n", ref.SourceURL, status)
	}
	fmt.Printf("Effective: %s", version.EffectiveStart.Format("2006-01-02"))
	if !version.Open() {
		fmt.Printf(" to %s", version.EffectiveEnd.Format("2006-01-02"))
	}
	fmt.Printf("\n\n%s\n", version.Content)
	return nil
}

// --- history subcommand ---

var referenceHistoryCmd = &cobra.Command{
	Use:   "history [reference-id]",
	Short: "List a reference's version timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runReferenceHistory,
}

func runReferenceHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	versions, err := st.VersionHistory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Println("No versions recorded.")
		return nil
	}

	for _, v := range versions {
		end := "open"
		if !v.Open() {
			end = v.EffectiveEnd.Format("2006-01-02")
		}
		line := fmt.Sprintf("%s  %s to %s", v.ID, v.EffectiveStart.Format("2006-01-02"), end)
		if v.ChangeSummary != "" {
			line += "  " + v.ChangeSummary
		}
		fmt.Println(line)
	}
	return nil
}

// --- pinpoint subcommand ---

var referencePinpointCmd = &cobra.Command{
	Use:   "pinpoint [reference-id] [path]",
	Short: "Show the text at a section or paragraph pinpoint",
	Long: `Pinpoint resolves a section/paragraph address (e.g. "s 52" or
"s 52/para (b)") against the reference's latest version and prints the
excerpt with its surrounding context.`,
	Args: cobra.ExactArgs(2),
	RunE: runReferencePinpoint,
}

func runReferencePinpoint(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	pin, err := st.GetPinpoint(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if pin.Context != "" {
		fmt.Printf("%s - %s\n\n", pin.Path, pin.Context)
	} else {
		fmt.Printf("%s\n\n", pin.Path)
	}
	fmt.Println(pin.Excerpt)
	return nil
}

// --- citations subcommand ---

var referenceCitationsCmd = &cobra.Command{
	Use:   "citations [reference-id]",
	Short: "Emit citation entries with full provenance",
	Long: `Citations prints every pinpoint of the resolved version as a citation
entry carrying the reference title, version window, source URL, and excerpt.`,
	Args: cobra.ExactArgs(1),
	RunE: runReferenceCitations,
}

func runReferenceCitations(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag(cmd, "as-of")
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.Citations(cmd.Context(), args[0], asOf)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	store.FormatCitations(entries, os.Stdout)
	return nil
}

// --- invalidate-url subcommand ---

var referenceInvalidateURLCmd = &cobra.Command{
	Use:   "invalidate-url [reference-id]",
	Short: "Mark a reference's source URL as dead",
	Long: `Invalidate-url records that the source link no longer resolves. The
stored content and audit trail are retained; only the link is flagged.`,
	Args: cobra.ExactArgs(1),
	RunE: runReferenceInvalidateURL,
}

func runReferenceInvalidateURL(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.MarkURLInvalid(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("marked %s source URL invalid\n", args[0])
	return nil
}

// --- audit subcommand ---

var referenceAuditCmd = &cobra.Command{
	Use:   "audit [reference-id]",
	Short: "Show a reference's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runReferenceAudit,
}

func runReferenceAudit(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.AuditTrail(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s", e.At.Format(time.RFC3339), e.Action)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}
	return nil
}

func init() {
	referenceGetCmd.Flags().String("as-of", "", "resolve the version effective on this date (YYYY-MM-DD)")
	referenceGetCmd.Flags().Bool("json", false, "emit the reference and version as JSON")
	referenceCitationsCmd.Flags().String("as-of", "", "cite the version effective on this date (YYYY-MM-DD)")
	referenceCitationsCmd.Flags().Bool("json", false, "emit citation entries as JSON")

	referenceCmd.AddCommand(referenceGetCmd)
	referenceCmd.AddCommand(referenceHistoryCmd)
	referenceCmd.AddCommand(referencePinpointCmd)
	referenceCmd.AddCommand(referenceCitationsCmd)
	referenceCmd.AddCommand(referenceInvalidateURLCmd)
	referenceCmd.AddCommand(referenceAuditCmd)
	rootCmd.AddCommand(referenceCmd)
}
