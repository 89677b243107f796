package cache

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// SearchHit is one scored match from a session's cached documents.
type SearchHit struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// indexedDoc is the subset of a cached document fed to bleve.
type indexedDoc struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SessionIndex maintains one in-memory full-text index per session over
// the documents currently cached for it. Lives and dies with the cache:
// entries leave the index when they leave the store.
type SessionIndex struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntries
}

type sessionEntries struct {
	index bleve.Index
	meta  map[string]indexedDoc // urlKey -> doc
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{sessions: make(map[string]*sessionEntries)}
}

// Add indexes doc under its session, creating the session index on first
// use.
func (si *SessionIndex) Add(doc CachedDocument) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	entries := si.sessions[doc.SessionID]
	if entries == nil {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return fmt.Errorf("session index: %w", err)
		}
		entries = &sessionEntries{index: idx, meta: make(map[string]indexedDoc)}
		si.sessions[doc.SessionID] = entries
	}

	key := urlKey(doc.URL)
	d := indexedDoc{URL: doc.URL, Title: doc.Title, Text: doc.Text}
	entries.meta[key] = d
	if err := entries.index.Index(key, d); err != nil {
		return fmt.Errorf("session index: %w", err)
	}
	return nil
}

// Remove drops one document from its session's index. Safe to call for
// documents that were never indexed.
func (si *SessionIndex) Remove(sessionID, url string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	entries := si.sessions[sessionID]
	if entries == nil {
		return
	}
	key := urlKey(url)
	delete(entries.meta, key)
	_ = entries.index.Delete(key)
}

// DestroySession closes and forgets the session's index.
func (si *SessionIndex) DestroySession(sessionID string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	if entries := si.sessions[sessionID]; entries != nil {
		_ = entries.index.Close()
		delete(si.sessions, sessionID)
	}
}

// Search runs a query-string search over the session's cached documents
// and returns up to k hits, best first.
func (si *SessionIndex) Search(sessionID, query string, k int) ([]SearchHit, error) {
	if k <= 0 {
		k = 5
	}
	// Queries are short; holding the lock keeps DestroySession from
	// closing the index underneath a running search.
	si.mu.RLock()
	defer si.mu.RUnlock()
	entries := si.sessions[sessionID]
	if entries == nil {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k, 0, false)
	res, err := entries.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("session search: %w", err)
	}

	out := make([]SearchHit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		doc, ok := entries.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, SearchHit{
			URL:     doc.URL,
			Title:   doc.Title,
			Snippet: snippet(doc.Text),
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return out, nil
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "…"
}
