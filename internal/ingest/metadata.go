// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// frontmatter is the YAML block cleaning writes at the top of each
// document. Unknown keys are ignored.
type frontmatter struct {
	DocID     string `yaml:"doc_id"`
	SourceURL string `yaml:"source_url"`
	TypeHint  string `yaml:"type_hint"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	Published string `yaml:"published"`
	Effective string `yaml:"effective"`
}

var (
	headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

	// effectiveRe finds effective/commencement date sentences.
	effectiveRe = regexp.MustCompile(`(?i)(?:commenc\w+\s+on|effective\s+(?:from|on)|date\s+of\s+effect[:\s]+|takes?\s+effect\s+(?:from|on))\s*(\d{1,2}\s+\w+\s+\d{4}|\d{4}-\d{2}-\d{2})`)

	// publishedRe finds publication/issue date sentences.
	publishedRe = regexp.MustCompile(`(?i)(?:published|issued|gazetted|registered)\s+(?:on\s+)?(\d{1,2}\s+\w+\s+\d{4}|\d{4}-\d{2}-\d{2})`)

	// bodyRe finds an issuing-body sentence.
	bodyRe = regexp.MustCompile(`(?i)(?:issued|published|administered|made)\s+by\s+(?:the\s+)?([A-Z][\w&() ]{2,60}?)(?:[.,\n]|\s+(?:on|under)\b)`)
)

// dateLayouts are the formats extraction accepts, tried in order.
var dateLayouts = []string{"2006-01-02", "2 January 2006", "02 January 2006"}

// ExtractMetadata fills a document's title, dates, and issuing body from
// its frontmatter and content cues. Existing fields from acquisition are
// kept; extraction only fills gaps. The content is returned with the
// frontmatter block stripped.
func ExtractMetadata(doc *types.CleanDocument) {
	body, fm := splitFrontmatter(doc.Content)
	doc.Content = body

	if fm != nil {
		if doc.SourceURL == "" {
			doc.SourceURL = fm.SourceURL
		}
		if doc.TypeHint == "" {
			doc.TypeHint = fm.TypeHint
		}
		if doc.Title == "" {
			doc.Title = fm.Title
		}
		if doc.Body == "" {
			doc.Body = fm.Body
		}
		if doc.PublishedAt.IsZero() {
			doc.PublishedAt = parseDate(fm.Published)
		}
		if doc.EffectiveStart.IsZero() {
			doc.EffectiveStart = parseDate(fm.Effective)
		}
	}

	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	if doc.EffectiveStart.IsZero() {
		if m := effectiveRe.FindStringSubmatch(body); m != nil {
			doc.EffectiveStart = parseDate(m[1])
		}
	}
	if doc.PublishedAt.IsZero() {
		if m := publishedRe.FindStringSubmatch(body); m != nil {
			doc.PublishedAt = parseDate(m[1])
		}
	}
	if doc.Body == "" {
		if m := bodyRe.FindStringSubmatch(body); m != nil {
			doc.Body = strings.TrimSpace(m[1])
		}
	}

	// A document stating no effective date takes effect when published.
	if doc.EffectiveStart.IsZero() {
		doc.EffectiveStart = doc.PublishedAt
	}
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// content. Content without frontmatter is returned unchanged with nil.
func splitFrontmatter(content string) (string, *frontmatter) {
	if !strings.HasPrefix(content, "---\n") {
		return content, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, nil
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return content, nil
	}
	body := rest[end+len("\n---"):]
	return strings.TrimLeft(body, "\n"), &fm
}

func firstHeading(content string) string {
	if m := headingRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
