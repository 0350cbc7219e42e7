package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) domain.Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	idx, err := NewStore(Config{URL: srv.URL}).Factory()("doc1")
	require.NoError(t, err)
	return idx
}

func TestSearchBreaksTiesBySequence(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/points/search"))
		w.Header().Set("Content-Type", "application/json")
		// equal scores arrive out of sequence order
		fmt.Fprint(w, `{"result":[
			{"score":0.5,"payload":{"clause_id":"doc1-2","seq":2,"text":"beta"}},
			{"score":0.5,"payload":{"clause_id":"doc1-1","seq":1,"text":"alpha"}},
			{"score":0.9,"payload":{"clause_id":"doc1-3","seq":3,"text":"gamma"}}
		]}`)
	})

	res, err := idx.Search(context.Background(), []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{3, 1, 2}, []int{res[0].Clause.Seq, res[1].Clause.Seq, res[2].Clause.Seq})
	assert.Equal(t, "doc1", res[0].Clause.DocumentID)
	assert.Equal(t, domain.ScoreSourceVector, res[0].Source)
}

func TestSearchPropagatesServerError(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := idx.Search(context.Background(), []float64{1}, 5)
	assert.Error(t, err)
}

func TestAddRejectsLengthMismatch(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {})
	err := idx.Add(context.Background(), []domain.Clause{{ID: "doc1-0"}}, nil)
	assert.Error(t, err)
}
