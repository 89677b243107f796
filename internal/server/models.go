package server

// FetchRequest is the document-retrieval operation's parameters. A
// continuation token overrides url and page. cache_enabled defaults to
// true.
type FetchRequest struct {
	URL               string `json:"url"`
	PageSize          int    `json:"page_size_tokens"`
	Page              int    `json:"page"`
	ContinuationToken string `json:"continuation_token"`
	CacheEnabled      *bool  `json:"cache_enabled"`
	// MaxTimeoutMS bounds the upstream fetch; zero uses the server
	// default.
	MaxTimeoutMS int `json:"max_timeout_ms"`
	// ExtractContent defaults to true; false returns the raw page HTML
	// without caching or pagination.
	ExtractContent *bool `json:"extract_content"`
	// ReturnFormat is auto, content_only, full_html or metadata.
	ReturnFormat string `json:"return_format"`
}

// Pagination mirrors one page's position within the full document.
type Pagination struct {
	Page              int    `json:"page"`
	PageSize          int    `json:"page_size"`
	TotalPages        int    `json:"total_pages"`
	TotalTokens       int    `json:"total_tokens"`
	HasNext           bool   `json:"has_next"`
	HasPrevious       bool   `json:"has_previous"`
	ContinuationToken string `json:"continuation_token,omitempty"`
	Offset            int    `json:"offset"`
	Limit             int    `json:"limit"`
}

// FetchResponse is the engine's output for one page request. HTML is
// set only on the unextracted raw path, where pagination stays zero.
type FetchResponse struct {
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Content         string     `json:"content,omitempty"`
	ContentMarkup   string     `json:"content_markup,omitempty"`
	HTML            string     `json:"html,omitempty"`
	EstimatedTokens int        `json:"estimated_tokens"`
	WasTruncated    bool       `json:"was_truncated"`
	FromCache       bool       `json:"from_cache"`
	Pagination      Pagination `json:"pagination"`
}

// SessionResponse carries a freshly minted session id.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// ErrorResponse is the uniform error body; kind is machine-readable.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
