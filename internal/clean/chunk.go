// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clean

import (
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// Split cuts a normalized document into chunks when its token count
// exceeds the configured threshold. Cuts land on section boundaries first,
// then paragraph boundaries inside an oversized section; a hard split
// happens only when a single paragraph alone exceeds the threshold. At or
// below the threshold the whole document is the single implicit chunk and
// Split returns nil.
func Split(doc types.CleanDocument, cfg types.ChunkConfig) []types.Chunk {
	threshold := cfg.Threshold()
	if CountTokens(doc.Content) <= threshold {
		return nil
	}

	var pieces []string
	for _, section := range splitSections(doc.Content) {
		pieces = append(pieces, boundedPieces(section, threshold)...)
	}

	packed := pack(pieces, threshold)
	chunks := make([]types.Chunk, len(packed))
	for i, content := range packed {
		chunks[i] = types.Chunk{
			ID:            uuid.NewString(),
			DocID:         doc.ID,
			Position:      i,
			TokenCount:    CountTokens(content),
			CharCount:     len(content),
			Compatibility: cfg.Compatibility,
			Content:       content,
		}
	}
	return chunks
}

// Recombine reassembles chunk contents in position order. Because cuts fall
// on blank-line boundaries, joining with a paragraph break restores a
// document equivalent to the cleaned original.
func Recombine(chunks []types.Chunk) string {
	parts := make([]string, len(chunks))
	for _, c := range chunks {
		parts[c.Position] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

// splitSections cuts on heading lines, keeping each heading with the text
// that follows it. A document without headings is one section.
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")
	var sections []string
	var current []string
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, l)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

// boundedPieces returns the section whole when it fits the threshold,
// otherwise breaks it down until every piece fits.
func boundedPieces(section string, threshold int) []string {
	if CountTokens(section) <= threshold {
		return []string{section}
	}

	var pieces []string
	for _, para := range strings.Split(section, "\n\n") {
		if CountTokens(para) <= threshold {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, hardSplit(para, threshold)...)
	}
	return pieces
}

// hardSplit cuts an oversized paragraph on sentence ends where possible,
// and on raw token boundaries as the last resort.
func hardSplit(text string, threshold int) []string {
	sentences := splitSentences(text)

	var pieces []string
	for _, s := range sentences {
		if CountTokens(s) <= threshold {
			pieces = append(pieces, s)
			continue
		}
		words := strings.Fields(s)
		for len(words) > threshold {
			pieces = append(pieces, strings.Join(words[:threshold], " "))
			words = words[threshold:]
		}
		if len(words) > 0 {
			pieces = append(pieces, strings.Join(words, " "))
		}
	}
	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '?' || text[i] == '!') && (text[i+1] == ' ' || text[i+1] == '\n') {
			sentences = append(sentences, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// pack greedily fills chunks with consecutive pieces up to the threshold,
// never reordering. Every piece already fits the threshold on its own.
func pack(pieces []string, threshold int) []string {
	var chunks []string
	var current []string
	tokens := 0
	for _, p := range pieces {
		n := CountTokens(p)
		if tokens+n > threshold && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			tokens = 0
		}
		current = append(current, p)
		tokens += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}
