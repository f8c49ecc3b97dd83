// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// SearchFilters narrows a search to a type, regulatory body, or effective
// date range. A reference matches a date range when any of its versions'
// effective windows overlap it.
type SearchFilters struct {
	Type     types.ReferenceType
	Body     string
	DateFrom time.Time
	DateTo   time.Time
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ReferenceID     string              `json:"reference_id" yaml:"reference_id"`
	Title           string              `json:"title" yaml:"title"`
	Type            types.ReferenceType `json:"type" yaml:"type"`
	Body            string              `json:"body,omitempty" yaml:"body,omitempty"`
	SourceURL       string              `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	URLValid        bool                `json:"url_valid" yaml:"url_valid"`
	Score           float64             `json:"score" yaml:"score"`
	Snippet         string              `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	LatestEffective time.Time           `json:"latest_effective,omitempty" yaml:"latest_effective,omitempty"`
	CurrentVersion  string              `json:"current_version,omitempty" yaml:"current_version,omitempty"`
}

// SearchOutput holds ranked results. Empty result sets always carry
// alternative keyword suggestions, the type filters present in the store,
// and an explanatory message, never bare emptiness.
type SearchOutput struct {
	Results        []SearchResult        `json:"results" yaml:"results"`
	Suggestions    []string              `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	AvailableTypes []types.ReferenceType `json:"available_types,omitempty" yaml:"available_types,omitempty"`
	Message        string                `json:"message,omitempty" yaml:"message,omitempty"`
}

// Search runs a ranked full-text query over reference titles and current
// text. Ranking combines the lexical match with a recency boost for
// recently effective versions; ties break toward the most recently
// effective reference. Search is read-only and safe to run concurrently
// with ingestion; it may observe eventually-consistent results.
func (s *Store) Search(ctx context.Context, query string, filters SearchFilters, limit int) (SearchOutput, error) {
	if strings.TrimSpace(query) == "" {
		return SearchOutput{}, &ValidationError{Missing: []string{"query"}}
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	var qb strings.Builder
	qb.WriteString(
		`SELECT r.id, r.type, r.title, r.body, r.source_url, r.url_valid,
			snippet(refs_fts, 2, '[', ']', '…', 12),
			refs_fts.rank,
			(SELECT v.id FROM versions v WHERE v.reference_id = r.id ORDER BY v.effective_start DESC LIMIT 1),
			(SELECT v.effective_start FROM versions v WHERE v.reference_id = r.id ORDER BY v.effective_start DESC LIMIT 1)
		FROM refs_fts
		JOIN refs r ON r.id = refs_fts.id
		WHERE refs_fts MATCH ?`)
	args := []any{ftsQuery(query)}

	if filters.Type != "" {
		qb.WriteString(` AND r.type = ?`)
		args = append(args, string(filters.Type))
	}
	if filters.Body != "" {
		qb.WriteString(` AND r.body = ?`)
		args = append(args, filters.Body)
	}
	if !filters.DateFrom.IsZero() || !filters.DateTo.IsZero() {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM versions v WHERE v.reference_id = r.id`)
		if !filters.DateTo.IsZero() {
			qb.WriteString(` AND v.effective_start <= ?`)
			args = append(args, filters.DateTo.UTC().Format(time.RFC3339))
		}
		if !filters.DateFrom.IsZero() {
			qb.WriteString(` AND (v.effective_end IS NULL OR v.effective_end > ?)`)
			args = append(args, filters.DateFrom.UTC().Format(time.RFC3339))
		}
		qb.WriteString(`)`)
	}

	qb.WriteString(` ORDER BY refs_fts.rank LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("searching references: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	var bestLexical float64
	for rows.Next() {
		var (
			res       SearchResult
			refType   string
			body      sql.NullString
			sourceURL sql.NullString
			urlValid  int
			snippet   sql.NullString
			rank      float64
			verID     sql.NullString
			verStart  sql.NullString
		)
		if err := rows.Scan(&res.ReferenceID, &refType, &res.Title, &body, &sourceURL,
			&urlValid, &snippet, &rank, &verID, &verStart); err != nil {
			return SearchOutput{}, fmt.Errorf("scanning result: %w", err)
		}
		res.Type = types.ReferenceType(refType)
		res.Body = body.String
		res.SourceURL = sourceURL.String
		res.URLValid = urlValid != 0
		res.Snippet = snippet.String
		res.CurrentVersion = verID.String
		res.LatestEffective = colToTime(verStart)

		// FTS5 rank is smaller-is-better and negative for matches.
		res.Score = -rank
		if res.Score > bestLexical {
			bestLexical = res.Score
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return SearchOutput{}, err
	}

	rankResults(results, bestLexical, s.recency, s.now())

	if len(results) == 0 {
		return s.emptyOutput(ctx, query)
	}

	return SearchOutput{Results: results}, nil
}

// rankResults normalizes lexical scores to [0,1] and adds a recency boost
// for references whose latest version became effective within the window.
// Ties break toward the most recently effective.
func rankResults(results []SearchResult, bestLexical float64, window time.Duration, now time.Time) {
	for i := range results {
		if bestLexical > 0 {
			results[i].Score = results[i].Score / bestLexical
		}
		if results[i].LatestEffective.IsZero() {
			continue
		}
		age := now.Sub(results[i].LatestEffective)
		if age >= 0 && age <= window {
			boost := 0.2 * (1.0 - float64(age)/float64(window))
			results[i].Score = math.Min(1.2, results[i].Score+boost)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].LatestEffective.After(results[j].LatestEffective)
	})
}

// emptyOutput builds the no-results response: alternative keywords from the
// index vocabulary, the type filters present in the store, and a
// human-readable message.
func (s *Store) emptyOutput(ctx context.Context, query string) (SearchOutput, error) {
	out := SearchOutput{
		Message: fmt.Sprintf("no references match %q; try one of the suggested terms or broaden the type filter", query),
	}

	suggestions, err := s.suggestTerms(ctx, query, 3)
	if err != nil {
		return out, err
	}
	out.Suggestions = suggestions

	available, err := s.ReferenceTypes(ctx)
	if err != nil {
		return out, err
	}
	out.AvailableTypes = available

	if len(out.Suggestions) == 0 && len(available) > 0 {
		out.Message += "; the store is searchable but holds no term overlapping the query"
	}
	return out, nil
}

// suggestTerms proposes indexed terms near the query: terms sharing a
// prefix with a query token first, then the most frequent terms overall.
func (s *Store) suggestTerms(ctx context.Context, query string, limit int) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(query))

	var suggestions []string
	seen := make(map[string]bool)

	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT term FROM refs_vocab WHERE term LIKE ? ORDER BY cnt DESC LIMIT ?`,
			tok[:3]+"%", limit)
		if err != nil {
			return nil, fmt.Errorf("querying vocabulary: %w", err)
		}
		for rows.Next() {
			var term string
			if err := rows.Scan(&term); err != nil {
				rows.Close()
				return nil, err
			}
			if term != tok && !seen[term] {
				seen[term] = true
				suggestions = append(suggestions, term)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	if len(suggestions) < limit {
		rows, err := s.db.QueryContext(ctx,
			`SELECT term FROM refs_vocab WHERE length(term) > 3 ORDER BY cnt DESC LIMIT ?`, limit)
		if err != nil {
			return nil, fmt.Errorf("querying vocabulary: %w", err)
		}
		for rows.Next() {
			var term string
			if err := rows.Scan(&term); err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[term] {
				seen[term] = true
				suggestions = append(suggestions, term)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// ftsQuery quotes each token so user input cannot break FTS5 query syntax.
// Tokens combine with implicit AND.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// Retrieve returns a reference together with the version effective on asOf,
// or the currently effective version when asOf is zero.
func (s *Store) Retrieve(ctx context.Context, refID string, asOf time.Time) (*types.Reference, *types.ReferenceVersion, error) {
	ref, err := s.GetReference(ctx, refID)
	if err != nil {
		return nil, nil, err
	}

	at := asOf
	if at.IsZero() {
		at = s.now()
	}
	version, err := s.ResolveAsOf(ctx, refID, at, false)
	if err != nil {
		return nil, nil, err
	}
	return ref, version, nil
}

// FormatTable writes results as a human-readable table to w, or the
// suggestion block when the result set is empty.
func FormatTable(out SearchOutput, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, out.Message)
		if len(out.Suggestions) > 0 {
			fmt.Fprintf(w, "suggested terms: %s\n", strings.Join(out.Suggestions, ", "))
		}
		if len(out.AvailableTypes) > 0 {
			names := make([]string, len(out.AvailableTypes))
			for i, t := range out.AvailableTypes {
				names[i] = string(t)
			}
			fmt.Fprintf(w, "available type filters: %s\n", strings.Join(names, ", "))
		}
		return
	}

	fmt.Fprintf(w, "%-4s  %-56s  %-10s  %-8s  %-10s  %-6s\n",
		"Rank", "Title", "Type", "Body", "Effective", "Score")
	fmt.Fprintln(w, strings.Repeat("-", 104))

	for i, r := range out.Results {
		title := r.Title
		if len(title) > 56 {
			title = title[:53] + "..."
		}
		effective := ""
		if !r.LatestEffective.IsZero() {
			effective = r.LatestEffective.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-4d  %-56s  %-10s  %-8s  %-10s  %-6.2f\n",
			i+1, title, r.Type, r.Body, effective, r.Score)
	}

	fmt.Fprintf(w, "\n%d results\n", len(out.Results))
}
