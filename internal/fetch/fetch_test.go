package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchLocalText(t *testing.T) {
	path := writeFile(t, "policy.txt", "Knee surgery is covered.\n\nDental is excluded.")
	doc, err := New().Fetch(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, domain.DocumentID(path), doc.ID)
	assert.Equal(t, path, doc.Ref)
	assert.Contains(t, doc.Content, "Knee surgery is covered.")
}

func TestFetchLocalMarkdown(t *testing.T) {
	path := writeFile(t, "policy.md", "# Terms\n\nGrace period of 30 days.")
	doc, err := New().Fetch(context.Background(), path)

	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Grace period of 30 days.")
}

func TestFetchCSVFlattensRows(t *testing.T) {
	path := writeFile(t, "claims.csv", "procedure,covered\nknee surgery,yes\ndental,no\n")
	doc, err := New().Fetch(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "procedure, covered\nknee surgery, yes\ndental, no", doc.Content)
}

func TestFetchMissingLocalFile(t *testing.T) {
	_, err := New().Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "policy.docx", "binary stuff")
	_, err := New().Fetch(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Pre-existing diseases have a waiting period of 36 months."))
	}))
	defer srv.Close()

	ref := srv.URL + "/policy.txt"
	doc, err := New().Fetch(context.Background(), ref)

	require.NoError(t, err)
	assert.Equal(t, domain.DocumentID(ref), doc.ID)
	assert.Contains(t, doc.Content, "waiting period of 36 months")
}

func TestFetchURLQueryStringIgnoredForExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	doc, err := New().Fetch(context.Background(), srv.URL+"/policy.txt?sig=abc.def")
	require.NoError(t, err)
	assert.Equal(t, "content", doc.Content)
}

func TestFetchURLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL+"/gone.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL+"/policy.txt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
