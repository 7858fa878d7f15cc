package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockroom/stockroom/internal/analytics"
)

const maxErrorBody = 512

// ErrUpstream marks failures caused by the records backend rather than the caller.
var ErrUpstream = errors.New("source: upstream unavailable")

// StatusError reports a non-2xx response from the records API.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: GET %s returned status %d: %s", e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// HTTPSource loads the three collections from the inventory REST backend.
type HTTPSource struct {
	baseURL     string
	httpClient  *http.Client
	generations *Generations
	now         func() time.Time
}

// HTTPOption customises an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithGenerations shares a generation counter between sources.
func WithGenerations(g *Generations) HTTPOption {
	return func(s *HTTPSource) {
		if g != nil {
			s.generations = g
		}
	}
}

// NewHTTPSource constructs a source against baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &HTTPSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		generations: &Generations{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches products, sales and pre-orders concurrently. Either all three
// collections arrive or an error is returned.
func (s *HTTPSource) Load(ctx context.Context) (analytics.Dataset, error) {
	var (
		products  []analytics.Product
		sales     []analytics.Sale
		preorders []analytics.PreOrder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.getCollection(gctx, "/products", &products) })
	g.Go(func() error { return s.getCollection(gctx, "/sales", &sales) })
	g.Go(func() error { return s.getCollection(gctx, "/preorders", &preorders) })
	if err := g.Wait(); err != nil {
		return analytics.Dataset{}, err
	}
	return analytics.Dataset{
		Generation: s.generations.Next(),
		FetchedAt:  s.now(),
		Products:   products,
		Sales:      sales,
		PreOrders:  preorders,
	}, nil
}

func (s *HTTPSource) getCollection(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("source: build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("source: GET %s: %w: %w", path, ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("source: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: truncate(body)}
	}
	if err := decodeCollection(body, dest); err != nil {
		return fmt.Errorf("source: decode %s: %w: %w", path, ErrUpstream, err)
	}
	return nil
}

// decodeCollection accepts a bare JSON array or an object wrapping it in "data".
func decodeCollection(body []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty body")
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, dest)
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Data, dest)
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
