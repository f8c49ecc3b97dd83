// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export citation entries for every reference",
	Long: `Export writes one citation file per reference, carrying the resolved
version window and pinpoint excerpts. Use --format to choose JSON or YAML.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "json", "export format: json or yaml")
	exportCmd.Flags().String("out", "exports", "output directory")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	switch format {
	case "json":
		err = st.ExportJSON(cmd.Context(), out)
	case "yaml":
		err = st.ExportYAML(cmd.Context(), out)
	default:
		return fmt.Errorf("unknown format %q: use json or yaml", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s/\n", out)
	return nil
}
