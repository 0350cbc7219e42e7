package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver

	"policyqa/internal/domain"
	"policyqa/internal/index/memory"
)

const clauseVectorsSchema = `
CREATE TABLE IF NOT EXISTS clause_vectors (
    doc_id    TEXT NOT NULL,
    seq       INTEGER NOT NULL,
    clause_id TEXT NOT NULL,
    text      TEXT NOT NULL,
    vector    TEXT NOT NULL,
    PRIMARY KEY (doc_id, seq)
);
`

const clauseVectorsIndex = `
CREATE INDEX IF NOT EXISTS idx_clause_vectors_doc ON clause_vectors(doc_id);
`

// Store is a SQLite-backed clause vector store shared by all documents.
// Vectors are persisted as JSON arrays; similarity is computed in process,
// which is adequate for per-document clause counts.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path. An empty path defaults
// to ~/.config/policyqa/index.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "policyqa", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(clauseVectorsSchema); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(clauseVectorsIndex); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Factory returns a domain.IndexFactory producing document-scoped views over
// this store.
func (s *Store) Factory() domain.IndexFactory {
	return func(docID string) (domain.Index, error) {
		return &Index{store: s, docID: docID}, nil
	}
}

// Index is a per-document view over the shared store.
type Index struct {
	store     *Store
	docID     string
	dimension int
}

// Init records the vector dimension and drops any stale rows for the document.
func (x *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	x.dimension = dimension
	_, err := x.store.db.ExecContext(ctx, `DELETE FROM clause_vectors WHERE doc_id = ?`, x.docID)
	return err
}

// Add persists clauses with their vectors in one transaction.
func (x *Index) Add(ctx context.Context, clauses []domain.Clause, vectors [][]float64) error {
	if len(clauses) != len(vectors) {
		return errors.New("clauses and vectors length mismatch")
	}
	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO clause_vectors (doc_id, seq, clause_id, text, vector)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range clauses {
		if len(vectors[i]) != x.dimension {
			return errors.New("vector dimension mismatch")
		}
		encoded, err := json.Marshal(vectors[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, x.docID, c.Seq, c.ID, c.Text, string(encoded)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search loads the document's vectors and ranks them by cosine similarity,
// ties broken by clause sequence order.
func (x *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.ScoredClause, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := x.store.db.QueryContext(ctx, `
		SELECT seq, clause_id, text, vector
		FROM clause_vectors WHERE doc_id = ? ORDER BY seq`, x.docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []domain.ScoredClause
	for rows.Next() {
		var seq int
		var clauseID, text, encoded string
		if err := rows.Scan(&seq, &clauseID, &text, &encoded); err != nil {
			return nil, err
		}
		var v []float64
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			return nil, err
		}
		scored = append(scored, domain.ScoredClause{
			Clause: domain.Clause{ID: clauseID, DocumentID: x.docID, Seq: seq, Text: text},
			Score:  memory.Cosine(v, vector),
			Source: domain.ScoreSourceVector,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
