// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [keywords...]",
	Short: "Search references by keywords with type, body, and date filters",
	Long: `Search runs a ranked full-text query over reference titles and current
text. When nothing matches, the output carries alternative keyword
suggestions and the reference types present in the store.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("type", "", "restrict to one reference type (act, regulation, guidance, case)")
	searchCmd.Flags().String("body", "", "restrict to one issuing regulatory body")
	searchCmd.Flags().String("from", "", "only references effective on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "only references effective before this date (YYYY-MM-DD)")
	searchCmd.Flags().Int("limit", 0, "maximum number of results (default 20)")
	searchCmd.Flags().Bool("json", false, "emit results as JSON")

	rootCmd.AddCommand(searchCmd)
}

// parseDateFlag accepts an ISO date or the empty string.
func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q: use YYYY-MM-DD", name, v)
	}
	return t, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	refType, _ := cmd.Flags().GetString("type")
	body, _ := cmd.Flags().GetString("body")
	limit, _ := cmd.Flags().GetInt("limit")

	filters := store.SearchFilters{
		Type: types.ReferenceType(refType),
		Body: body,
	}
	var err error
	if filters.DateFrom, err = parseDateFlag(cmd, "from"); err != nil {
		return err
	}
	if filters.DateTo, err = parseDateFlag(cmd, "to"); err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	out, err := st.Search(cmd.Context(), query, filters, limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	store.FormatTable(out, os.Stdout)
	return nil
}
