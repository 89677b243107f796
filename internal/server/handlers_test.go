package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/docfetch/internal/cache"
	"github.com/mohammad-safakhou/docfetch/internal/token"
)

func linedText(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(strings.Repeat("w", 39) + "\n")
	}
	return sb.String()[:n]
}

func testHandler(text string, fetchErr error) *Handler {
	fetchFn := func(ctx context.Context, url string, opt cache.FetchOptions) (cache.Extracted, error) {
		if fetchErr != nil {
			return cache.Extracted{}, fetchErr
		}
		if opt.Raw {
			return cache.Extracted{HTML: "<html><body>" + text + "</body></html>"}, nil
		}
		return cache.Extracted{Title: "Doc " + url, Text: text, HTML: "<p>m</p>"}, nil
	}
	engine := cache.NewEngine(cache.NewMemoryStore(0, 0), fetchFn, 0, nil)
	return &Handler{Engine: engine}
}

func doFetch(t *testing.T, h *Handler, sessionID, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/fetch", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.fetchPage(c)
}

func TestFetchPageReturnsPaginatedResponse(t *testing.T) {
	h := testHandler(linedText(45000), nil)
	rec, err := doFetch(t, h, "s1", `{"url":"https://x","page_size_tokens":5000}`)
	if err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp FetchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
	if resp.Pagination.ContinuationToken == "" {
		t.Fatalf("missing continuation token")
	}
	if resp.FromCache || !resp.WasTruncated {
		t.Fatalf("flags wrong: %+v", resp)
	}
	if resp.ContentMarkup != "" {
		t.Fatalf("markup returned without full_html")
	}

	// Second request is a cache hit with identical content.
	rec2, err := doFetch(t, h, "s1", `{"url":"https://x","page_size_tokens":5000}`)
	if err != nil {
		t.Fatalf("second fetchPage: %v", err)
	}
	var resp2 FetchResponse
	_ = json.Unmarshal(rec2.Body.Bytes(), &resp2)
	if !resp2.FromCache || resp2.Content != resp.Content {
		t.Fatalf("second request not served from cache")
	}
}

func TestFetchPageContinuationToken(t *testing.T) {
	h := testHandler(linedText(45000), nil)
	rec, err := doFetch(t, h, "s1", `{"url":"https://x","page_size_tokens":5000}`)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	var first FetchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &first)

	body, _ := json.Marshal(FetchRequest{
		ContinuationToken: first.Pagination.ContinuationToken,
		PageSize:          5000,
	})
	rec2, err := doFetch(t, h, "s1", string(body))
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	var second FetchResponse
	_ = json.Unmarshal(rec2.Body.Bytes(), &second)
	if second.Pagination.Page != 2 || second.URL != "https://x" {
		t.Fatalf("continuation resolved to %+v", second)
	}
}

func TestFetchPageErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		handler  *Handler
		session  string
		body     string
		wantCode int
		wantKind string
	}{
		{
			name:     "session mismatch",
			handler:  testHandler(linedText(1000), nil),
			session:  "s1",
			body:     `{"continuation_token":"` + token.Encode("https://x", "other", 2) + `"}`,
			wantCode: http.StatusForbidden,
			wantKind: "token_session_mismatch",
		},
		{
			name:     "malformed token",
			handler:  testHandler(linedText(1000), nil),
			session:  "s1",
			body:     `{"continuation_token":"@@@"}`,
			wantCode: http.StatusBadRequest,
			wantKind: "token_malformed",
		},
		{
			name:     "page out of range",
			handler:  testHandler(linedText(1000), nil),
			session:  "s1",
			body:     `{"url":"https://x","page":7}`,
			wantCode: http.StatusRequestedRangeNotSatisfiable,
			wantKind: "page_out_of_range",
		},
		{
			name:     "upstream failure",
			handler:  testHandler("", errors.New("tls handshake timeout")),
			session:  "s1",
			body:     `{"url":"https://down"}`,
			wantCode: http.StatusBadGateway,
			wantKind: "upstream_fetch",
		},
		{
			name:     "missing session",
			handler:  testHandler(linedText(1000), nil),
			session:  "",
			body:     `{"url":"https://x"}`,
			wantCode: http.StatusBadRequest,
			wantKind: "missing_session",
		},
	}

	for _, tc := range cases {
		_, err := doFetch(t, tc.handler, tc.session, tc.body)
		he, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("%s: expected *echo.HTTPError, got %v", tc.name, err)
		}
		if he.Code != tc.wantCode {
			t.Fatalf("%s: code = %d, want %d", tc.name, he.Code, tc.wantCode)
		}
		body, ok := he.Message.(ErrorResponse)
		if !ok || body.Kind != tc.wantKind {
			t.Fatalf("%s: message = %+v, want kind %q", tc.name, he.Message, tc.wantKind)
		}
	}
}

func TestFetchPageReturnFormats(t *testing.T) {
	h := testHandler(linedText(1000), nil)

	rec, err := doFetch(t, h, "s1", `{"url":"https://x","return_format":"content_only"}`)
	if err != nil {
		t.Fatalf("content_only: %v", err)
	}
	if strings.HasPrefix(rec.Body.String(), "{") {
		t.Fatalf("content_only returned JSON")
	}

	rec, err = doFetch(t, h, "s1", `{"url":"https://x","return_format":"metadata"}`)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	var meta FetchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &meta)
	if meta.Content != "" || meta.Pagination.TotalPages != 1 {
		t.Fatalf("metadata format wrong: %+v", meta)
	}

	rec, err = doFetch(t, h, "s1", `{"url":"https://x","return_format":"full_html"}`)
	if err != nil {
		t.Fatalf("full_html: %v", err)
	}
	var full FetchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &full)
	if full.ContentMarkup == "" {
		t.Fatalf("full_html missing markup")
	}
}

func TestFetchPageRawHTML(t *testing.T) {
	h := testHandler(linedText(45000), nil)

	rec, err := doFetch(t, h, "s1", `{"url":"https://x","extract_content":false}`)
	if err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	var resp FetchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.HTML, "<html>") {
		t.Fatalf("raw markup missing: %.40q", resp.HTML)
	}
	if resp.Content != "" || resp.Pagination.Page != 0 {
		t.Fatalf("raw response was paginated: %+v", resp)
	}

	// Nothing was cached, so an extracted fetch still misses.
	rec2, err := doFetch(t, h, "s1", `{"url":"https://x"}`)
	if err != nil {
		t.Fatalf("second fetchPage: %v", err)
	}
	var resp2 FetchResponse
	_ = json.Unmarshal(rec2.Body.Bytes(), &resp2)
	if resp2.FromCache {
		t.Fatalf("raw fetch populated the cache")
	}
}

func TestDestroySessionEndpoint(t *testing.T) {
	h := testHandler(linedText(1000), nil)
	if _, err := doFetch(t, h, "s1", `{"url":"https://x"}`); err != nil {
		t.Fatalf("prime: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("s1")
	if err := h.destroySession(c); err != nil {
		t.Fatalf("destroySession: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	// The next fetch misses the cache again.
	rec2, err := doFetch(t, h, "s1", `{"url":"https://x"}`)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	var resp FetchResponse
	_ = json.Unmarshal(rec2.Body.Bytes(), &resp)
	if resp.FromCache {
		t.Fatalf("cache survived session destroy")
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	h := testHandler(linedText(100), nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	if err := h.createSession(e.NewContext(req, rec)); err != nil {
		t.Fatalf("createSession: %v", err)
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("empty session id")
	}
}
