package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
	"policyqa/internal/index/memory"
)

type mockEmbedder struct {
	vec []float64
	err error
}

func (m *mockEmbedder) Name() string                                     { return "mock" }
func (m *mockEmbedder) Prepare(context.Context, []string) error          { return nil }
func (m *mockEmbedder) Dimension() int                                   { return len(m.vec) }
func (m *mockEmbedder) Embed(context.Context, string) ([]float64, error) { return m.vec, m.err }
func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		v, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type nanIndex struct{ res []domain.ScoredClause }

func (n *nanIndex) Init(context.Context, int) error                      { return nil }
func (n *nanIndex) Add(context.Context, []domain.Clause, [][]float64) error { return nil }
func (n *nanIndex) Search(context.Context, []float64, int) ([]domain.ScoredClause, error) {
	return n.res, nil
}

func clauses(texts ...string) []domain.Clause {
	out := make([]domain.Clause, len(texts))
	for i, t := range texts {
		out[i] = domain.Clause{ID: "d-" + t, DocumentID: "d", Seq: i, Text: t}
	}
	return out
}

func age(n int) *int { return &n }

func TestRenderSearchStringFieldOrder(t *testing.T) {
	q := domain.StructuredQuery{
		Raw:            "whatever",
		Age:            age(46),
		Gender:         "male",
		Procedure:      "knee surgery",
		Location:       "pune",
		PolicyDuration: "3 months",
		PolicyType:     "health",
		QueryType:      "coverage",
	}
	got := RenderSearchString(q)
	want := "Procedure: knee surgery. Query type: coverage. Age: 46. Gender: male. Location: pune. Policy duration: 3 months. Policy type: health"
	assert.Equal(t, want, got)
}

func TestRenderSearchStringFallsBackToRaw(t *testing.T) {
	q := domain.StructuredQuery{Raw: "is physio covered", QueryType: domain.QueryTypeGeneral}
	assert.Equal(t, "is physio covered", RenderSearchString(q))
}

func TestRetrieveVectorPath(t *testing.T) {
	ctx := context.Background()
	cs := clauses("knee surgery is covered", "dental is excluded", "grace period of 30 days")
	idx := memory.New()
	require.NoError(t, idx.Init(ctx, 2))
	require.NoError(t, idx.Add(ctx, cs, [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}}))

	di := &domain.DocumentIndex{
		Clauses:    cs,
		Index:      idx,
		Embedder:   &mockEmbedder{vec: []float64{1, 0}},
		Dimension:  2,
		HasVectors: true,
	}
	res := New().Retrieve(ctx, domain.StructuredQuery{Raw: "knee"}, di, 2)
	require.Len(t, res, 2)
	assert.Equal(t, "knee surgery is covered", res[0].Clause.Text)
	assert.Equal(t, domain.ScoreSourceVector, res[0].Source)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestRetrieveFallsBackOnEmbedError(t *testing.T) {
	ctx := context.Background()
	cs := clauses("knee surgery is covered after a waiting period", "dental treatment is excluded")
	di := &domain.DocumentIndex{
		Clauses:    cs,
		Index:      memory.New(),
		Embedder:   &mockEmbedder{err: errors.New("provider down")},
		HasVectors: true,
	}
	res := New().Retrieve(ctx, domain.StructuredQuery{Raw: "knee surgery covered"}, di, 5)
	require.NotEmpty(t, res)
	assert.Equal(t, domain.ScoreSourceLexical, res[0].Source)
	assert.Equal(t, "knee surgery is covered after a waiting period", res[0].Clause.Text)
}

func TestRetrieveDropsNaNScores(t *testing.T) {
	ctx := context.Background()
	cs := clauses("a", "b")
	di := &domain.DocumentIndex{
		Clauses: cs,
		Index: &nanIndex{res: []domain.ScoredClause{
			{Clause: cs[0], Score: math.NaN(), Source: domain.ScoreSourceVector},
			{Clause: cs[1], Score: 0.5, Source: domain.ScoreSourceVector},
		}},
		Embedder:   &mockEmbedder{vec: []float64{1}},
		HasVectors: true,
	}
	res := New().Retrieve(ctx, domain.StructuredQuery{Raw: "a"}, di, 5)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].Clause.Text)
}

func TestLexicalScoring(t *testing.T) {
	cs := clauses(
		"knee surgery is covered under this policy",
		"the policy excludes dental",
		"nothing relevant here",
	)
	res := Lexical("knee surgery policy", cs, 5)
	require.Len(t, res, 2)
	assert.Equal(t, cs[0].Text, res[0].Clause.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, cs[1].Text, res[1].Clause.Text)
	assert.InDelta(t, 1.0/3.0, res[1].Score, 1e-9)
}

func TestLexicalTruncatesAndStaysWithinInput(t *testing.T) {
	cs := clauses("policy a", "policy b", "policy c", "policy d")
	res := Lexical("policy", cs, 2)
	require.Len(t, res, 2)
	ids := map[string]bool{}
	for _, c := range cs {
		ids[c.ID] = true
	}
	for _, r := range res {
		assert.True(t, ids[r.Clause.ID])
	}
	// ties broken by sequence order
	assert.Equal(t, 0, res[0].Clause.Seq)
	assert.Equal(t, 1, res[1].Clause.Seq)
}

func TestRetrieveEmptyClauses(t *testing.T) {
	res := New().Retrieve(context.Background(), domain.StructuredQuery{Raw: "x"}, &domain.DocumentIndex{}, 5)
	assert.Nil(t, res)
}
