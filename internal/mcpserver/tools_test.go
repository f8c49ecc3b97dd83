// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// mockQuerier returns canned store responses and records the arguments it
// was called with.
type mockQuerier struct {
	searchOut   store.SearchOutput
	searchErr   error
	gotQuery    string
	gotFilters  store.SearchFilters
	gotLimit    int
	ref         *types.Reference
	version     *types.ReferenceVersion
	retrieveErr error
	gotAsOf     time.Time
	history     []types.ReferenceVersion
	historyErr  error
	pinpoint    *types.Pinpoint
	pinpointErr error
}

func (m *mockQuerier) Search(_ context.Context, query string, filters store.SearchFilters, limit int) (store.SearchOutput, error) {
	m.gotQuery, m.gotFilters, m.gotLimit = query, filters, limit
	return m.searchOut, m.searchErr
}

func (m *mockQuerier) Retrieve(_ context.Context, refID string, asOf time.Time) (*types.Reference, *types.ReferenceVersion, error) {
	m.gotAsOf = asOf
	return m.ref, m.version, m.retrieveErr
}

func (m *mockQuerier) VersionHistory(_ context.Context, refID string) ([]types.ReferenceVersion, error) {
	return m.history, m.historyErr
}

func (m *mockQuerier) GetPinpoint(_ context.Context, refID, path string) (*types.Pinpoint, error) {
	return m.pinpoint, m.pinpointErr
}

func newTestServer(t *testing.T, q Querier) *Server {
	t.Helper()
	s, err := NewServer(q)
	require.NoError(t, err)
	return s
}

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrMissingStore)
}

func TestHandleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("maps results and filters", func(t *testing.T) {
		q := &mockQuerier{
			searchOut: store.SearchOutput{
				Results: []store.SearchResult{{
					ReferenceID:     "sisa-1993",
					Title:           "Superannuation Industry (Supervision) Act 1993",
					Type:            types.TypeAct,
					Body:            "Treasury",
					URLValid:        true,
					Score:           0.91,
					Snippet:         "...supervision of superannuation entities...",
					LatestEffective: time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC),
				}},
			},
		}
		server := newTestServer(t, q)

		input := SearchInput{Query: "superannuation", Type: "act", DateFrom: "2018-01-01", Limit: 5}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "sisa-1993", output.Results[0].ReferenceID)
		assert.Equal(t, "act", output.Results[0].Type)
		assert.Equal(t, "2018-07-01", output.Results[0].LatestEffective)
		assert.Equal(t, "superannuation", q.gotQuery)
		assert.Equal(t, types.TypeAct, q.gotFilters.Type)
		assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), q.gotFilters.DateFrom)
		assert.Equal(t, 5, q.gotLimit)
	})

	t.Run("passes through empty-set suggestions", func(t *testing.T) {
		q := &mockQuerier{
			searchOut: store.SearchOutput{
				Suggestions:    []string{"superannuation", "supervision"},
				AvailableTypes: []types.ReferenceType{types.TypeAct, types.TypeGuidance},
				Message:        "no references matched",
			},
		}
		server := newTestServer(t, q)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "superannuatoin"})

		require.NoError(t, err)
		assert.Empty(t, output.Results)
		assert.Equal(t, []string{"superannuation", "supervision"}, output.Suggestions)
		assert.Equal(t, []string{"act", "guidance"}, output.AvailableTypes)
		assert.Equal(t, "no references matched", output.Message)
	})

	t.Run("rejects malformed dates before querying", func(t *testing.T) {
		q := &mockQuerier{}
		server := newTestServer(t, q)

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "levy", DateFrom: "01/07/2018"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
		assert.Empty(t, q.gotQuery, "store should not be queried")
	})

	t.Run("propagates store errors", func(t *testing.T) {
		server := newTestServer(t, &mockQuerier{searchErr: errors.New("store closed")})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "levy"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "store closed")
	})
}

func TestHandleGetReference(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the resolved version", func(t *testing.T) {
		q := &mockQuerier{
			ref: &types.Reference{
				ID:       "sisr-1994",
				Type:     types.TypeRegulation,
				Title:    "Superannuation Industry (Supervision) Regulations 1994",
				Body:     "Treasury",
				URLValid: true,
			},
			version: &types.ReferenceVersion{
				ID:             "v2",
				ReferenceID:    "sisr-1994",
				EffectiveStart: time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC),
				EffectiveEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Content:        "Regulation 4.07 provides...",
			},
		}
		server := newTestServer(t, q)

		input := GetReferenceInput{ReferenceID: "sisr-1994", AsOf: "2022-06-30"}
		_, output, err := server.handleGetReference(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "sisr-1994", output.ReferenceID)
		assert.Equal(t, "regulation", output.Type)
		assert.Equal(t, "v2", output.VersionID)
		assert.Equal(t, "2020-04-01", output.EffectiveStart)
		assert.Equal(t, "2024-01-01", output.EffectiveEnd)
		assert.Equal(t, "Regulation 4.07 provides...", output.Content)
		assert.Equal(t, time.Date(2022, 6, 30, 0, 0, 0, 0, time.UTC), q.gotAsOf)
	})

	t.Run("open version omits effective end", func(t *testing.T) {
		q := &mockQuerier{
			ref: &types.Reference{ID: "gs-007", Type: types.TypeGuidance, Title: "Guidance Statement 007"},
			version: &types.ReferenceVersion{
				ID:             "v1",
				EffectiveStart: time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC),
				Content:        "Guidance content.",
			},
		}
		server := newTestServer(t, q)

		_, output, err := server.handleGetReference(ctx, nil, GetReferenceInput{ReferenceID: "gs-007"})

		require.NoError(t, err)
		assert.Empty(t, output.EffectiveEnd)
		assert.True(t, q.gotAsOf.IsZero(), "omitted as_of resolves to now")
	})

	t.Run("propagates out-of-range errors", func(t *testing.T) {
		q := &mockQuerier{
			retrieveErr: &store.OutOfRangeError{ReferenceID: "sisa-1993"},
		}
		server := newTestServer(t, q)

		_, _, err := server.handleGetReference(ctx, nil, GetReferenceInput{ReferenceID: "sisa-1993", AsOf: "1901-01-01"})

		require.Error(t, err)
		assert.True(t, store.IsOutOfRange(err))
	})
}

func TestHandleGetPinpoint(t *testing.T) {
	q := &mockQuerier{
		pinpoint: &types.Pinpoint{
			ID:          "pin-1",
			ReferenceID: "sisa-1993",
			VersionID:   "v2",
			Path:        "s 52/para (b)",
			Excerpt:     "to exercise the same degree of care...",
			Context:     "Section 52 Covenants",
		},
	}
	server := newTestServer(t, q)

	input := GetPinpointInput{ReferenceID: "sisa-1993", Path: "s 52/para (b)"}
	_, output, err := server.handleGetPinpoint(context.Background(), nil, input)

	require.NoError(t, err)
	assert.Equal(t, "s 52/para (b)", output.Path)
	assert.Equal(t, "v2", output.VersionID)
	assert.Contains(t, output.Excerpt, "degree of care")
}

func TestHandleVersionHistory(t *testing.T) {
	q := &mockQuerier{
		history: []types.ReferenceVersion{
			{
				ID:             "v1",
				EffectiveStart: time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC),
				EffectiveEnd:   time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC),
				ChangeSummary:  "original",
			},
			{
				ID:             "v2",
				EffectiveStart: time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC),
				ChangeSummary:  "amended covenants",
			},
		},
	}
	server := newTestServer(t, q)

	_, output, err := server.handleVersionHistory(context.Background(), nil, VersionHistoryInput{ReferenceID: "sisa-1993"})

	require.NoError(t, err)
	require.Len(t, output.Versions, 2)
	assert.Equal(t, "2020-04-01", output.Versions[0].EffectiveEnd)
	assert.False(t, output.Versions[0].Open)
	assert.True(t, output.Versions[1].Open)
	assert.Empty(t, output.Versions[1].EffectiveEnd)
}
