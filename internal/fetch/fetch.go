package fetch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"policyqa/internal/domain"
	"policyqa/internal/logger"
)

var (
	// ErrNotFound means the reference does not resolve to a document.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupported means the document format cannot be extracted.
	ErrUnsupported = errors.New("unsupported document format")
)

// DocumentFetcher resolves a document reference, either a local path or an
// http(s) URL, and extracts its text content. Remote documents are downloaded
// to a temporary file that is removed once extraction finishes.
type DocumentFetcher struct {
	client *http.Client
}

// New creates a fetcher with a default HTTP client.
func New() *DocumentFetcher {
	return &DocumentFetcher{client: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch resolves ref and returns the extracted document.
func (f *DocumentFetcher) Fetch(ctx context.Context, ref string) (domain.Document, error) {
	path := ref
	if isURL(ref) {
		tmp, cleanup, err := f.download(ctx, ref)
		if err != nil {
			return domain.Document{}, err
		}
		defer cleanup()
		path = tmp
	} else if _, err := os.Stat(path); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	text, err := extractText(path)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{ID: domain.DocumentID(ref), Ref: ref, Content: text}
	logger.Debug("fetched %s (%d bytes of text) as %s", ref, len(text), doc.ID)
	return doc, nil
}

func isURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// download fetches ref into a temporary file carrying the URL's extension,
// so extraction can dispatch on it. The returned cleanup removes the file.
func (f *DocumentFetcher) download(ctx context.Context, ref string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download %s: unexpected status %s", ref, resp.Status)
	}

	ext := filepath.Ext(strings.SplitN(ref, "?", 2)[0])
	tmp, err := os.CreateTemp("", "policyqa-*"+ext)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil {
			logger.Warn("failed to remove temp file %s: %v", tmp.Name(), err)
		}
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("download %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

// extractText dispatches on the file extension. Plain-text formats are read
// as-is, CSV rows are flattened to comma-joined lines, and PDFs go through
// the plain-text extractor.
func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".json", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".csv":
		return extractCSV(path)
	case ".pdf":
		return extractPDF(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func extractCSV(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv %s: %w", path, err)
	}
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = strings.Join(rec, ", ")
	}
	return strings.Join(lines, "\n"), nil
}

func extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()
	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", err
	}
	return buf.String(), nil
}
