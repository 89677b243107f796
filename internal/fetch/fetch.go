// Package fetch retrieves raw page content and extracts the readable
// article out of it. Two fetchers are provided: a FlareSolverr client
// for Cloudflare-protected pages and a headless-browser fetcher.
package fetch

import (
	"context"
	"time"
)

// Result is one fetched and extracted document.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	HTML   string `json:"html,omitempty"`
	Status int    `json:"status"`
}

// Options tunes a single fetch. The zero value uses the fetcher's
// defaults with extraction on.
type Options struct {
	// Timeout bounds this request's upstream time budget. Zero falls
	// back to the fetcher's configured default.
	Timeout time.Duration
	// Raw skips extraction; Result.HTML carries the page markup
	// untouched and Text stays empty.
	Raw bool
}

// Fetcher fetches a URL and extracts its main content. Implementations
// may be slow (tens of seconds) and honor ctx for cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (Result, error)
	Close() error
}
