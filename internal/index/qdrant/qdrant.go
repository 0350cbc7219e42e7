package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"policyqa/internal/domain"
)

// pointNamespace seeds deterministic UUIDv5 point IDs so re-indexing a
// document overwrites its previous points.
var pointNamespace = uuid.MustParse("8f7a62cc-5be1-4cf7-9a34-0f8f2f0a6c11")

// Store is a minimal REST client to Qdrant. All documents share one
// collection; searches filter on the document payload field.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config contains connection details for a Qdrant store.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewStore creates a Qdrant-backed store.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "policyqa-clauses"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Factory returns a domain.IndexFactory producing document-scoped views over
// this store.
func (s *Store) Factory() domain.IndexFactory {
	return func(docID string) (domain.Index, error) {
		return &Index{store: s, docID: docID}, nil
	}
}

// Index is a per-document view over the shared collection.
type Index struct {
	store     *Store
	docID     string
	dimension int
}

// Init creates the collection if missing. Qdrant returns 200 for an existing
// collection with the same schema.
func (x *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	x.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return x.store.putJSON(ctx, fmt.Sprintf("%s/collections/%s", x.store.url, x.store.collection), body)
}

// Add upserts clause points with deterministic IDs and document-tagged payloads.
func (x *Index) Add(ctx context.Context, clauses []domain.Clause, vectors [][]float64) error {
	if len(clauses) != len(vectors) {
		return errors.New("clauses and vectors length mismatch")
	}
	points := make([]map[string]any, len(clauses))
	for i := range clauses {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(clauses[i].ID)).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": clauses[i].DocumentID,
				"clause_id":   clauses[i].ID,
				"seq":         clauses[i].Seq,
				"text":        clauses[i].Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return x.store.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", x.store.url, x.store.collection), body)
}

// Search queries the collection filtered to this document. Qdrant orders by
// score but leaves equal scores in server order, so results are re-sorted
// with ties broken by clause sequence.
func (x *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.ScoredClause, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": x.docID}},
			},
		},
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := x.store.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", x.store.url, x.store.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.ScoredClause, 0, len(resp.Result))
	for _, r := range resp.Result {
		clause := domain.Clause{DocumentID: x.docID}
		if v, ok := r.Payload["clause_id"].(string); ok {
			clause.ID = v
		}
		if v, ok := r.Payload["seq"].(float64); ok {
			clause.Seq = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			clause.Text = v
		}
		results = append(results, domain.ScoredClause{Clause: clause, Score: r.Score, Source: domain.ScoreSourceVector})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Clause.Seq < results[j].Clause.Seq
	})
	return results, nil
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
