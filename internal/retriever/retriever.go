package retriever

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"policyqa/internal/domain"
	"policyqa/internal/logger"
)

// SimilarityRetriever ranks a document's clauses against a structured query
// by embedding similarity, degrading to lexical word overlap when embedding
// is unavailable.
type SimilarityRetriever struct{}

// New creates a retriever.
func New() *SimilarityRetriever { return &SimilarityRetriever{} }

// Retrieve never fails. It returns at most topK clauses in descending score
// order; clauses with NaN or negative-infinite scores are dropped.
func (r *SimilarityRetriever) Retrieve(ctx context.Context, q domain.StructuredQuery, di *domain.DocumentIndex, topK int) []domain.ScoredClause {
	if topK <= 0 {
		topK = 5
	}
	if di == nil || len(di.Clauses) == 0 {
		return nil
	}
	if di.HasVectors && di.Index != nil && di.Embedder != nil {
		res, err := r.vectorSearch(ctx, q, di, topK)
		if err == nil {
			return res
		}
		logger.Warn("similarity search fell back to lexical matching: %v", err)
	}
	return Lexical(q.Raw, di.Clauses, topK)
}

func (r *SimilarityRetriever) vectorSearch(ctx context.Context, q domain.StructuredQuery, di *domain.DocumentIndex, topK int) ([]domain.ScoredClause, error) {
	search := RenderSearchString(q)
	logger.Debug("search string: %q", search)
	vec, err := di.Embedder.Embed(ctx, search)
	if err != nil {
		return nil, err
	}
	res, err := di.Index.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	kept := res[:0]
	for _, sc := range res {
		if math.IsNaN(sc.Score) || math.IsInf(sc.Score, -1) {
			continue
		}
		kept = append(kept, sc)
	}
	return kept, nil
}

// RenderSearchString concatenates the populated query fields as
// "<Field name>: <value>" in a fixed order. When no structured field is
// populated (the query type default does not count), the raw question text
// is used instead.
func RenderSearchString(q domain.StructuredQuery) string {
	var parts []string
	if q.Procedure != "" {
		parts = append(parts, "Procedure: "+q.Procedure)
	}
	if q.QueryType != "" && q.QueryType != domain.QueryTypeGeneral {
		parts = append(parts, "Query type: "+q.QueryType)
	}
	if q.Age != nil {
		parts = append(parts, "Age: "+strconv.Itoa(*q.Age))
	}
	if q.Gender != "" {
		parts = append(parts, "Gender: "+q.Gender)
	}
	if q.Location != "" {
		parts = append(parts, "Location: "+q.Location)
	}
	if q.PolicyDuration != "" {
		parts = append(parts, "Policy duration: "+q.PolicyDuration)
	}
	if q.PolicyType != "" {
		parts = append(parts, "Policy type: "+q.PolicyType)
	}
	if len(parts) == 0 {
		return q.Raw
	}
	return strings.Join(parts, ". ")
}

// Lexical scores each clause by the fraction of query words that appear as
// substrings of the clause text, keeps positive scores, and returns the topK
// in descending order with ties broken by clause sequence.
func Lexical(raw string, clauses []domain.Clause, topK int) []domain.ScoredClause {
	if topK <= 0 {
		topK = 5
	}
	words := strings.Fields(strings.ToLower(raw))
	if len(words) == 0 {
		return nil
	}
	var scored []domain.ScoredClause
	for _, c := range clauses {
		text := strings.ToLower(c.Text)
		hits := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		scored = append(scored, domain.ScoredClause{
			Clause: c,
			Score:  float64(hits) / float64(len(words)),
			Source: domain.ScoreSourceLexical,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Clause.Seq < scored[j].Clause.Seq
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}
