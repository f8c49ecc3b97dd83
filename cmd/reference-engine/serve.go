// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reference-engine/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store to research agents over MCP",
	Long: `Serve exposes the temporal store through the Model Context Protocol:
search_references, get_reference, get_pinpoint, and get_version_history.
By default the server speaks MCP over stdio; --http serves it over HTTP
instead. The server is read-only and safe to run alongside ingestion.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("http", "", "serve MCP over HTTP on this address (e.g. :8080) instead of stdio")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	server, err := mcpserver.NewServer(st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := flagOrConfig(cmd, "http", "serve.http_addr", "")
	if addr != "" {
		fmt.Fprintf(os.Stderr, "serving MCP on %s\n", addr)
		err = server.RunHTTP(ctx, addr)
	} else {
		err = server.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
