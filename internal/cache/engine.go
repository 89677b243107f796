// Package cache holds previously extracted documents per session and
// serves token-budget-sized pages out of them. It composes the token
// estimator, the boundary-aware paginator and the continuation token
// codec; the network fetch and content extraction are injected.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/docfetch/internal/paginate"
	"github.com/mohammad-safakhou/docfetch/internal/token"
	"github.com/mohammad-safakhou/docfetch/internal/tokenest"
)

// DefaultPageSize leaves headroom under the outer response ceiling
// (~25k estimated tokens) for metadata overhead.
const DefaultPageSize = 20000

// Extracted is what the injected fetch+extract collaborator produces.
type Extracted struct {
	Title string
	Text  string
	HTML  string
}

// FetchOptions tunes one upstream fetch. Zero values mean the
// fetcher's defaults with extraction on.
type FetchOptions struct {
	// Timeout bounds this request's upstream budget.
	Timeout time.Duration
	// Raw skips extraction; Extracted.HTML carries the page markup
	// untouched and Text stays empty.
	Raw bool
}

// FetchFunc fetches a URL and extracts its content. May be slow and may
// fail; the engine neither retries it nor masks its errors.
type FetchFunc func(ctx context.Context, url string, opt FetchOptions) (Extracted, error)

// UpstreamError wraps a FetchFunc failure so callers can tell it apart
// from cache and token errors.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// Request names a page of a document under a session. A continuation
// token, when present, overrides URL and Page.
type Request struct {
	URL               string
	SessionID         string
	Page              int
	PageSize          int
	ContinuationToken string
	CacheEnabled      bool
	// MaxTimeout bounds the upstream fetch for this request; zero uses
	// the fetcher's default.
	MaxTimeout time.Duration
	// RawHTML skips extraction on a cache miss: the page markup comes
	// back unpaginated and uncached. A cache hit still serves the
	// extracted, paginated document.
	RawHTML bool
}

// Result is the engine's output for one request. Either a full Result or
// an error is returned, never both.
type Result struct {
	URL               string
	Title             string
	Content           string
	ContentHTML       string
	EstimatedTokens   int
	WasTruncated      bool
	FromCache         bool
	Page              paginate.Page
	ContinuationToken string
}

// Engine is the session-scoped cache plus pagination front. Construct
// once per process and inject wherever requests are handled.
type Engine struct {
	store    Store
	index    *SessionIndex
	fetch    FetchFunc
	pageSize int
	logger   *log.Logger

	// OnEvict observes entries leaving the store, for metrics.
	OnEvict func(sessionID, url string)
}

// NewEngine wires the engine. fetch is required; pageSize <= 0 falls
// back to DefaultPageSize.
func NewEngine(store Store, fetch FetchFunc, pageSize int, logger *log.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	e := &Engine{
		store:    store,
		index:    NewSessionIndex(),
		fetch:    fetch,
		pageSize: pageSize,
		logger:   logger,
	}
	remove := func(sessionID, url string) {
		e.index.Remove(sessionID, url)
		if e.OnEvict != nil {
			e.OnEvict(sessionID, url)
		}
	}
	switch st := store.(type) {
	case *MemoryStore:
		st.OnRemove = remove
	case *RedisStore:
		st.OnRemove = remove
	}
	return e
}

// GetOrFetch resolves the requested page: decode any continuation token,
// consult the store, fetch+extract on miss or expiry, then paginate and
// attach the next page's continuation token. Typed failures: token
// errors fail fast, upstream failures wrap as *UpstreamError, a page
// past the end is paginate.ErrPageOutOfRange.
func (e *Engine) GetOrFetch(ctx context.Context, req Request) (*Result, error) {
	url, page := req.URL, req.Page
	if req.ContinuationToken != "" {
		var err error
		url, page, err = token.Decode(req.ContinuationToken, req.SessionID)
		if err != nil {
			return nil, err
		}
	}
	// Zero means unset; negative pages fall through to the paginator's
	// range check.
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = e.pageSize
	}
	opt := FetchOptions{Timeout: req.MaxTimeout}

	doc, hit, err := e.lookup(ctx, req.SessionID, url, req.CacheEnabled)
	if err != nil {
		return nil, err
	}
	if !hit {
		if req.RawHTML {
			opt.Raw = true
			ext, err := e.fetch(ctx, url, opt)
			if err != nil {
				return nil, &UpstreamError{URL: url, Err: err}
			}
			return &Result{URL: url, Title: ext.Title, ContentHTML: ext.HTML}, nil
		}
		doc, err = e.refresh(ctx, req.SessionID, url, req.CacheEnabled, opt)
		if err != nil {
			return nil, err
		}
	}

	pg, err := paginate.Paginate(doc.Text, page, pageSize)
	if err != nil {
		return nil, err
	}

	res := &Result{
		URL:             url,
		Title:           doc.Title,
		Content:         pg.Text,
		ContentHTML:     doc.HTML,
		EstimatedTokens: tokenest.Estimate(pg.Text),
		WasTruncated:    pg.TotalPages > 1,
		FromCache:       hit,
		Page:            pg,
	}
	if pg.HasNext {
		res.ContinuationToken = token.Encode(url, req.SessionID, page+1)
	}
	return res, nil
}

func (e *Engine) lookup(ctx context.Context, sessionID, url string, cacheEnabled bool) (CachedDocument, bool, error) {
	if !cacheEnabled {
		return CachedDocument{}, false, nil
	}
	return e.store.Get(ctx, sessionID, url)
}

// refresh fetches outside any store lock; two concurrent misses for the
// same key may both fetch, last write wins.
func (e *Engine) refresh(ctx context.Context, sessionID, url string, cacheEnabled bool, opt FetchOptions) (CachedDocument, error) {
	ext, err := e.fetch(ctx, url, opt)
	if err != nil {
		return CachedDocument{}, &UpstreamError{URL: url, Err: err}
	}
	doc := CachedDocument{
		URL:       url,
		Title:     ext.Title,
		Text:      ext.Text,
		HTML:      ext.HTML,
		CreatedAt: time.Now(),
		SessionID: sessionID,
	}
	if !cacheEnabled {
		return doc, nil
	}
	if err := e.store.Put(ctx, doc); err != nil {
		return CachedDocument{}, fmt.Errorf("cache put: %w", err)
	}
	if err := e.index.Add(doc); err != nil {
		e.logger.Printf("index %s: %v", url, err)
	}
	return doc, nil
}

// Search queries the session's cached documents.
func (e *Engine) Search(sessionID, query string, k int) ([]SearchHit, error) {
	return e.index.Search(sessionID, query, k)
}

// DestroySession drops every cached document and the search index for
// sessionID. Invoked when the owning session is torn down.
func (e *Engine) DestroySession(ctx context.Context, sessionID string) error {
	err := e.store.DestroySession(ctx, sessionID)
	e.index.DestroySession(sessionID)
	return err
}

// Sweep eagerly expires entries; see Store.Sweep.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	return e.store.Sweep(ctx)
}
