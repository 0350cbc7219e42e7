package domain

import "context"

// Fetcher resolves a document reference (URL or local path) to extracted text.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (Document, error)
}

// Segmenter splits extracted document text into addressable clauses.
type Segmenter interface {
	Segment(doc Document) []Clause
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Reasoner is a black-box completion service used by the semantic paths of
// the structurer and the evaluator.
type Reasoner interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Index persists clause vectors for one document and supports similarity
// search over them.
type Index interface {
	Init(ctx context.Context, dimension int) error
	Add(ctx context.Context, clauses []Clause, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]ScoredClause, error)
}

// IndexFactory creates a per-document index scoped to the given document ID.
type IndexFactory func(docID string) (Index, error)

// Structurer converts a free-text question into a structured query.
// It never fails: internal failures of the semantic path are recovered via a
// deterministic fallback extractor.
type Structurer interface {
	Structure(ctx context.Context, raw string) StructuredQuery
}

// Retriever ranks a document's clauses against a structured query. It never
// fails: embedding failures are recovered via lexical matching.
type Retriever interface {
	Retrieve(ctx context.Context, q StructuredQuery, di *DocumentIndex, topK int) []ScoredClause
}

// Evaluator produces a decision from a structured query and ranked clauses.
// It never fails: reasoning failures are recovered via the rule table.
type Evaluator interface {
	Evaluate(ctx context.Context, q StructuredQuery, clauses []ScoredClause) Decision
}
