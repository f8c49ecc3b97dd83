// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/report"
	"github.com/pdiddy/reference-engine/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect pipeline job records",
	Long: `Jobs summarizes the job tables: acquisition, cleaning, and ingestion.
Use subcommands to list failed acquisitions with their remediation steps,
the manual review queue, or to write the progress report.`,
	RunE: runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.CountJobs(cmd.Context())
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("No jobs recorded.")
		return nil
	}

	fmt.Printf("%-12s  %-22s  %s\n", "Stage", "Status", "Count")
	fmt.Println(strings.Repeat("-", 44))
	for _, c := range counts {
		fmt.Printf("%-12s  %-22s  %d\n", c.Kind, c.Status, c.Count)
	}
	return nil
}

// --- failed subcommand ---

var jobsFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List failed acquisitions with remediation steps",
	RunE:  runJobsFailed,
}

func runJobsFailed(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.ListScrapingJobs(cmd.Context(), types.StatusFailed)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No failed acquisitions.")
		return nil
	}

	for _, j := range jobs {
		fmt.Printf("%s  %s\n", j.ID, j.SourceURL)
		for _, a := range j.Attempts {
			fmt.Printf("  %-10s %s\n", a.Method, a.Error)
		}
		if j.Remediation != "" {
			fmt.Printf("  remediation: %s\n", j.Remediation)
		}
	}
	return nil
}

// --- reviews subcommand ---

var jobsReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List documents awaiting manual classification review",
	RunE:  runJobsReviews,
}

func runJobsReviews(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	reviews, err := st.PendingReviews(cmd.Context())
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	for _, r := range reviews {
		fmt.Printf("%s  %s\n", r.DocID, r.Title)
		fmt.Printf("  guessed %s at %.2f: %s\n", r.GuessedType, r.Confidence, r.Reason)
	}
	return nil
}

// --- report subcommand ---

var jobsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the pipeline progress report",
	RunE:  runJobsReport,
}

func runJobsReport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if out == "-" {
		return report.Render(cmd.Context(), st, os.Stdout)
	}
	if err := report.Write(cmd.Context(), st, out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func init() {
	jobsReportCmd.Flags().String("out", "PROGRESS.md", "report path, or - for stdout")

	jobsCmd.AddCommand(jobsFailedCmd)
	jobsCmd.AddCommand(jobsReviewsCmd)
	jobsCmd.AddCommand(jobsReportCmd)
	rootCmd.AddCommand(jobsCmd)
}
