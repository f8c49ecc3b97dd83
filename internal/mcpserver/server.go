// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes the temporal store to research agents over the
// Model Context Protocol. The server is read-only: every tool maps to a
// store query, and ingestion keeps running underneath it.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingStore is returned when NewServer is given a nil querier.
var ErrMissingStore = errors.New("mcpserver: store is required")

// Querier is the read side of the temporal store the server exposes.
// *store.Store satisfies it.
type Querier interface {
	Search(ctx context.Context, query string, filters store.SearchFilters, limit int) (store.SearchOutput, error)
	Retrieve(ctx context.Context, refID string, asOf time.Time) (*types.Reference, *types.ReferenceVersion, error)
	VersionHistory(ctx context.Context, refID string) ([]types.ReferenceVersion, error)
	GetPinpoint(ctx context.Context, refID, path string) (*types.Pinpoint, error)
}

// Server wraps an mcp.Server with tool handlers bound to the store.
type Server struct {
	q      Querier
	server *mcp.Server
}

// NewServer creates an MCP server serving the given store.
func NewServer(q Querier) (*Server, error) {
	if q == nil {
		return nil, ErrMissingStore
	}

	impl := &mcp.Implementation{
		Name:    "reference-engine",
		Version: Version,
	}

	s := &Server{
		q:      q,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over HTTP on addr until the context is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// parseDate accepts an ISO date or the empty string (meaning "unset").
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}
