// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// DedupKey identifies the lock scope for documents resolving to the same
// canonical reference: normalized title plus type. The date family is
// resolved under the lock, so two annual acts sharing a title never race.
func DedupKey(title string, refType types.ReferenceType) string {
	return store.NormalizeTitle(title) + "|" + string(refType)
}

// findCanonical locates an existing reference the document belongs to:
// same normalized title and type, with an existing version whose effective
// start falls within the date family window of the document's own
// effective date. A reference with no versions yet matches regardless of
// date. Returns nil when the document starts a new reference.
func findCanonical(ctx context.Context, st *store.Store, title string, refType types.ReferenceType, effective time.Time, window time.Duration) (*types.Reference, error) {
	candidates, err := st.FindByDedupKey(ctx, title, refType)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	for _, cand := range candidates {
		versions, err := st.VersionHistory(ctx, cand.ID)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return cand, nil
		}
		for _, v := range versions {
			gap := effective.Sub(v.EffectiveStart)
			if gap < 0 {
				gap = -gap
			}
			if gap <= window {
				return cand, nil
			}
		}
	}
	return nil, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// referenceID derives a stable, readable id for a new reference. When the
// slug is taken by a different date family, the effective year
// disambiguates.
func referenceID(ctx context.Context, st *store.Store, title string, effective time.Time) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "reference"
	}
	if _, err := st.GetReference(ctx, slug); err != nil {
		return slug
	}
	withYear := fmt.Sprintf("%s-%d", slug, effective.Year())
	if _, err := st.GetReference(ctx, withYear); err != nil {
		return withYear
	}
	return fmt.Sprintf("%s-%d", withYear, time.Now().UnixNano())
}
