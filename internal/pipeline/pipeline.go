package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"policyqa/internal/domain"
	"policyqa/internal/logger"
)

// Options wires the pipeline's collaborators and tuning knobs. Fetcher,
// Segmenter, Structurer, Retriever and Evaluator are required; NewEmbedder
// and NewIndex may be nil, in which case retrieval is lexical-only.
type Options struct {
	Fetcher    domain.Fetcher
	Segmenter  domain.Segmenter
	Structurer domain.Structurer
	Retriever  domain.Retriever
	Evaluator  domain.Evaluator

	// NewEmbedder produces a fresh embedder per document. TF-IDF vocabulary
	// is document-scoped, so instances must not be shared across documents.
	NewEmbedder func() domain.Embedder
	NewIndex    domain.IndexFactory

	TopK               int
	Budget             time.Duration
	MaxCachedDocuments int // 0 = unbounded
	BatchConcurrency   int
}

// Pipeline orchestrates one question end to end: fetch and segment the
// document, build (or reuse) its vector index, structure the question,
// retrieve relevant clauses and evaluate a decision. It always returns a
// decision; the budget and internal failures surface as the TIMEOUT and
// ERROR_FALLBACK verdicts rather than errors.
type Pipeline struct {
	opts  Options
	cache *indexCache
	sf    singleflight.Group
}

// New creates a pipeline with the given options, filling in defaults for the
// tuning knobs left at zero.
func New(opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Budget <= 0 {
		opts.Budget = 30 * time.Second
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 3
	}
	return &Pipeline{
		opts:  opts,
		cache: newIndexCache(opts.MaxCachedDocuments),
	}
}

// Answer runs the full pipeline for one question about the document at ref
// within the configured time budget.
func (p *Pipeline) Answer(ctx context.Context, ref, question string) (dec domain.Decision) {
	reqID := uuid.NewString()[:8]
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("[%s] recovered: %v", reqID, r)
			dec = errorDecision(fmt.Errorf("internal error: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Budget)
	defer cancel()
	logger.Debug("[%s] question: %q", reqID, question)

	di, err := p.documentIndex(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return timeoutDecision()
		}
		logger.Warn("[%s] document preparation failed: %v", reqID, err)
		return errorDecision(err)
	}

	q := p.opts.Structurer.Structure(ctx, question)
	if ctx.Err() != nil {
		return timeoutDecision()
	}

	clauses := p.opts.Retriever.Retrieve(ctx, q, di, p.opts.TopK)
	if ctx.Err() != nil {
		return timeoutDecision()
	}
	logger.Debug("[%s] retrieved %d clauses", reqID, len(clauses))

	dec = p.opts.Evaluator.Evaluate(ctx, q, clauses)
	if ctx.Err() != nil {
		return timeoutDecision()
	}
	logger.Debug("[%s] verdict: %s", reqID, dec.Verdict)
	return dec
}

// AnswerText answers one question and returns only the justification text.
func (p *Pipeline) AnswerText(ctx context.Context, ref, question string) string {
	return p.Answer(ctx, ref, question).Justification.Reason
}

// AnswerBatch answers several questions about the same document concurrently
// and returns the decisions in question order. Each question gets its own
// time budget.
func (p *Pipeline) AnswerBatch(ctx context.Context, ref string, questions []string) []domain.Decision {
	out := make([]domain.Decision, len(questions))
	sem := make(chan struct{}, p.opts.BatchConcurrency)
	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = p.Answer(ctx, ref, q)
		}()
	}
	wg.Wait()
	return out
}

// Ingest prepares the document at ref without asking a question, so the
// first Answer call does not pay the build cost. It is not subject to the
// answer budget.
func (p *Pipeline) Ingest(ctx context.Context, ref string) (*domain.DocumentIndex, error) {
	return p.documentIndex(ctx, ref)
}

// documentIndex returns the cached index for ref, building it at most once
// across concurrent callers. The build runs detached from the caller's
// deadline so a slow caller cannot leave a half-built entry behind; the
// caller itself still honors its own context.
func (p *Pipeline) documentIndex(ctx context.Context, ref string) (*domain.DocumentIndex, error) {
	key := domain.DocumentID(ref)
	if di, ok := p.cache.Get(key); ok {
		return di, nil
	}
	ch := p.sf.DoChan(key, func() (any, error) {
		if di, ok := p.cache.Get(key); ok {
			return di, nil
		}
		di, err := p.build(context.WithoutCancel(ctx), ref)
		if err != nil {
			return nil, err
		}
		p.cache.Put(key, di)
		return di, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.DocumentIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build fetches, segments and indexes one document. Embedding or index
// failures are not fatal: the entry is kept without vectors and retrieval
// degrades to lexical matching.
func (p *Pipeline) build(ctx context.Context, ref string) (*domain.DocumentIndex, error) {
	start := time.Now()
	doc, err := p.opts.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", ref, err)
	}
	clauses := p.opts.Segmenter.Segment(doc)
	di := &domain.DocumentIndex{Document: doc, Clauses: clauses}
	if len(clauses) == 0 || p.opts.NewEmbedder == nil || p.opts.NewIndex == nil {
		return di, nil
	}

	texts := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
	}
	emb := p.opts.NewEmbedder()
	if err := emb.Prepare(ctx, texts); err != nil {
		logger.Warn("embedder prepare failed for %s, keeping lexical-only index: %v", doc.ID, err)
		return di, nil
	}
	vectors, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Warn("embedding failed for %s, keeping lexical-only index: %v", doc.ID, err)
		return di, nil
	}
	idx, err := p.opts.NewIndex(doc.ID)
	if err != nil {
		logger.Warn("index creation failed for %s, keeping lexical-only index: %v", doc.ID, err)
		return di, nil
	}
	if err := idx.Init(ctx, emb.Dimension()); err != nil {
		logger.Warn("index init failed for %s, keeping lexical-only index: %v", doc.ID, err)
		return di, nil
	}
	if err := idx.Add(ctx, clauses, vectors); err != nil {
		logger.Warn("index population failed for %s, keeping lexical-only index: %v", doc.ID, err)
		return di, nil
	}
	di.Index = idx
	di.Embedder = emb
	di.Dimension = emb.Dimension()
	di.HasVectors = true
	logger.Debug("indexed %s: %d clauses, dim %d, in %s", doc.ID, len(clauses), di.Dimension, time.Since(start).Round(time.Millisecond))
	return di, nil
}

func timeoutDecision() domain.Decision {
	return domain.Decision{
		Verdict: domain.VerdictTimeout,
		Justification: domain.Justification{
			Reason: "The time budget was exhausted before a decision could be made.",
		},
	}
}

func errorDecision(err error) domain.Decision {
	return domain.Decision{
		Verdict: domain.VerdictErrorFallback,
		Justification: domain.Justification{
			Reason: "Unable to answer the question: " + err.Error(),
		},
	}
}
