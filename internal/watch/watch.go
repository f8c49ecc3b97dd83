// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch monitors the acquisition inbox for source descriptor files.
// Operators drop YAML descriptors into sources/inbox; each file is parsed
// and handed to the acquisition pipeline, then moved to inbox/processed so
// it is consumed exactly once.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// processedDir is where consumed inbox files are moved, relative to the
// inbox directory.
const processedDir = "processed"

// suppressWindow collapses the burst of fsnotify events a single file write
// produces into one processing pass.
const suppressWindow = 500 * time.Millisecond

// Handler consumes one descriptor from an inbox file.
type Handler func(ctx context.Context, src types.SourceDescriptor) error

// Watcher tails an inbox directory for descriptor files.
type Watcher struct {
	dir     string
	handler Handler
	out     io.Writer

	lastSeen map[string]time.Time
}

// New creates a watcher over dir. Progress lines go to out.
func New(dir string, handler Handler, out io.Writer) *Watcher {
	return &Watcher{
		dir:      dir,
		handler:  handler,
		out:      out,
		lastSeen: make(map[string]time.Time),
	}
}

// Run sweeps any descriptors already in the inbox, then blocks watching for
// new ones until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(w.dir, processedDir), 0o755); err != nil {
		return fmt.Errorf("creating processed directory: %w", err)
	}

	if err := w.Sweep(ctx); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	fmt.Fprintf(w.out, "watching %s for source descriptors\n", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isDescriptorFile(event.Name) || w.suppressed(event.Name) {
				continue
			}
			w.processFile(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w.out, "watch error: %v\n", err)
		}
	}
}

// Sweep processes every descriptor file already present in the inbox.
func (w *Watcher) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading inbox %s: %w", w.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDescriptorFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.processFile(ctx, filepath.Join(w.dir, name))
	}
	return nil
}

// processFile parses one inbox file, hands each descriptor to the handler,
// and moves the file aside once every descriptor has been accepted. A
// handler failure leaves the file in place for the next sweep.
func (w *Watcher) processFile(ctx context.Context, path string) {
	srcs, err := LoadDescriptors(path)
	if err != nil {
		fmt.Fprintf(w.out, "failed:  %s (%v)\n", filepath.Base(path), err)
		return
	}

	for _, src := range srcs {
		if src.Status == types.SourceCompleted {
			continue
		}
		if err := w.handler(ctx, src); err != nil {
			fmt.Fprintf(w.out, "failed:  %s (%v)\n", src.URL, err)
			return
		}
		fmt.Fprintf(w.out, "queued:  %s\n", src.URL)
	}

	dest := filepath.Join(w.dir, processedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		fmt.Fprintf(w.out, "failed:  %s (moving to processed: %v)\n", filepath.Base(path), err)
	}
}

// suppressed reports whether path fired within the suppression window and
// records this sighting.
func (w *Watcher) suppressed(path string) bool {
	now := time.Now()
	last, ok := w.lastSeen[path]
	w.lastSeen[path] = now
	return ok && now.Sub(last) < suppressWindow
}

// LoadDescriptors parses an inbox file. The file may hold a single
// descriptor mapping or a YAML list of them.
func LoadDescriptors(path string) ([]types.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []types.SourceDescriptor
	if err := yaml.Unmarshal(data, &list); err == nil {
		return validDescriptors(list)
	}

	var single types.SourceDescriptor
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	return validDescriptors([]types.SourceDescriptor{single})
}

func validDescriptors(srcs []types.SourceDescriptor) ([]types.SourceDescriptor, error) {
	for _, src := range srcs {
		if strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("descriptor missing url")
		}
	}
	return srcs, nil
}

func isDescriptorFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
