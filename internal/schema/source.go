package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultRef is fetched when no version is requested.
const DefaultRef = "master"

// DefaultTimeout bounds a single schema request.
const DefaultTimeout = 10 * time.Second

// maxDocumentBytes caps the size of a fetched document.
const maxDocumentBytes = 32 << 20

// DefaultURLTemplates are the historical locations of the Biolink model
// YAML. {ref} is replaced with a branch, tag or commit.
var DefaultURLTemplates = []string{
	"https://raw.githubusercontent.com/biolink/biolink-model/{ref}/biolink-model.yaml",
	"https://raw.githubusercontent.com/biolink/biolink-model/{ref}/src/biolink_model/schema/biolink_model.yaml",
}

// Retrieval errors.
var (
	ErrNotFound    = errors.New("schema not found")
	ErrUnavailable = errors.New("schema unavailable")
)

// Source fetches the raw bytes of a schema document.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPClient allows injecting a mock HTTP client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource fetches documents over HTTP, trying each URL template in order
// and moving to the next one on 404.
type HTTPSource struct {
	Client       HTTPClient
	URLTemplates []string
}

// NewHTTPSource creates an HTTPSource with its own client.
func NewHTTPSource(timeout time.Duration, templates []string) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if len(templates) == 0 {
		templates = DefaultURLTemplates
	}
	return &HTTPSource{
		Client:       &http.Client{Timeout: timeout},
		URLTemplates: templates,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		ref = DefaultRef
	}
	templates := s.URLTemplates
	if len(templates) == 0 {
		templates = DefaultURLTemplates
	}

	err := fmt.Errorf("%w: no url templates", ErrNotFound)
	for _, tmpl := range templates {
		var body []byte
		body, err = s.get(ctx, strings.ReplaceAll(tmpl, "{ref}", url.PathEscape(ref)))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return body, err
	}
	return nil, err
}

func (s *HTTPSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	if int64(len(body)) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: %s: document exceeds %d bytes", ErrUnavailable, target, maxDocumentBytes)
	}
	return body, nil
}

// FileSource reads a document from the local filesystem. The requested ref
// is ignored.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Load fetches and parses a document.
func Load(ctx context.Context, src Source, ref string, opts ParseOptions) (*Document, error) {
	data, err := src.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Parse(data, opts)
}

// DirSource serves one document per ref from a directory: ref "v3.1.2"
// reads "v3.1.2.yaml" (or ".yml"). An empty ref reads DefaultRef.
type DirSource struct {
	Dir string
}

// Fetch implements Source.
func (s *DirSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		ref = DefaultRef
	}
	if ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return nil, fmt.Errorf("%w: invalid ref %q", ErrNotFound, ref)
	}
	var err error
	for _, ext := range []string{".yaml", ".yml"} {
		var data []byte
		data, err = (&FileSource{Path: filepath.Join(s.Dir, ref+ext)}).Fetch(ctx, ref)
		if !errors.Is(err, ErrNotFound) {
			return data, err
		}
	}
	return nil, err
}
