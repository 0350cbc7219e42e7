package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestIndex(t *testing.T, store *Store, docID string) domain.Index {
	t.Helper()
	idx, err := store.Factory()(docID)
	require.NoError(t, err)
	return idx
}

func clauses(docID string, texts ...string) []domain.Clause {
	out := make([]domain.Clause, len(texts))
	for i, txt := range texts {
		out[i] = domain.Clause{ID: docID + "-" + txt, DocumentID: docID, Seq: i, Text: txt}
	}
	return out
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, newTestStore(t), "doc1")
	cs := clauses("doc1", "knee", "dental", "grace")

	require.NoError(t, idx.Init(ctx, 2))
	require.NoError(t, idx.Add(ctx, cs, [][]float64{{1, 0}, {0, 1}, {0.6, 0.8}}))

	res, err := idx.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "knee", res[0].Clause.Text)
	assert.Equal(t, "grace", res[1].Clause.Text)
	assert.Equal(t, domain.ScoreSourceVector, res[0].Source)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestDocumentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestIndex(t, store, "doc-a")
	b := newTestIndex(t, store, "doc-b")

	require.NoError(t, a.Init(ctx, 1))
	require.NoError(t, a.Add(ctx, clauses("doc-a", "alpha"), [][]float64{{1}}))
	require.NoError(t, b.Init(ctx, 1))
	require.NoError(t, b.Add(ctx, clauses("doc-b", "beta"), [][]float64{{1}}))

	res, err := a.Search(ctx, []float64{1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alpha", res[0].Clause.Text)
	assert.Equal(t, "doc-a", res[0].Clause.DocumentID)
}

func TestInitDropsStaleRows(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, newTestStore(t), "doc1")

	require.NoError(t, idx.Init(ctx, 1))
	require.NoError(t, idx.Add(ctx, clauses("doc1", "old"), [][]float64{{1}}))
	require.NoError(t, idx.Init(ctx, 1))
	require.NoError(t, idx.Add(ctx, clauses("doc1", "new"), [][]float64{{1}}))

	res, err := idx.Search(ctx, []float64{1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "new", res[0].Clause.Text)
}

func TestAddRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, newTestStore(t), "doc1")
	require.NoError(t, idx.Init(ctx, 2))

	assert.Error(t, idx.Add(ctx, clauses("doc1", "a"), nil))
	assert.Error(t, idx.Add(ctx, clauses("doc1", "a"), [][]float64{{1}}))
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	idx := newTestIndex(t, store, "doc1")
	require.NoError(t, idx.Init(ctx, 1))
	require.NoError(t, idx.Add(ctx, clauses("doc1", "persisted"), [][]float64{{1}}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	res, err := newTestIndex(t, reopened, "doc1").Search(ctx, []float64{1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "persisted", res[0].Clause.Text)
}
