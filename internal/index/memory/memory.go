package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"policyqa/internal/domain"
)

// Index is an in-memory per-document vector index using brute-force cosine
// similarity.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	clauses   []domain.Clause
}

// New creates an empty in-memory index.
func New() *Index { return &Index{} }

// Factory returns a domain.IndexFactory producing a fresh in-memory index
// per document.
func Factory() domain.IndexFactory {
	return func(string) (domain.Index, error) { return New(), nil }
}

// Init sets the vector dimension and clears any previous content.
func (s *Index) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.clauses = nil
	return nil
}

// Add stores clauses with their vectors.
func (s *Index) Add(_ context.Context, clauses []domain.Clause, vectors [][]float64) error {
	if len(clauses) != len(vectors) {
		return errors.New("clauses and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.clauses = append(s.clauses, clauses...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search returns the topK most similar clauses, descending by cosine
// similarity with ties broken by clause sequence order.
func (s *Index) Search(_ context.Context, vector []float64, topK int) ([]domain.ScoredClause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scored := make([]domain.ScoredClause, 0, len(s.vectors))
	for i := range s.vectors {
		scored = append(scored, domain.ScoredClause{
			Clause: s.clauses[i],
			Score:  Cosine(s.vectors[i], vector),
			Source: domain.ScoreSourceVector,
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
	return scored[:topK], nil
}

// Cosine computes the cosine similarity between two vectors. A zero-norm
// operand yields 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
