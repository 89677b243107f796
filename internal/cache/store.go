package cache

import (
	"context"
	"sync"
	"time"
)

// Default limits mirror the document-fetch tool's reference behavior.
const (
	DefaultTTL      = 15 * time.Minute
	DefaultCapacity = 10
)

// Store holds cached documents keyed by (session, url). Implementations
// must be safe for concurrent use. An expired entry is never returned as
// a hit; it is removed and treated as absent.
type Store interface {
	// Get returns the live entry for (sessionID, url), or ok=false.
	Get(ctx context.Context, sessionID, url string) (CachedDocument, bool, error)
	// Put inserts or replaces an entry, evicting the oldest entry of the
	// session first when the session is at capacity.
	Put(ctx context.Context, doc CachedDocument) error
	// DestroySession drops every entry belonging to sessionID.
	DestroySession(ctx context.Context, sessionID string) error
	// Len reports the number of entries held for sessionID.
	Len(ctx context.Context, sessionID string) (int, error)
	// Sweep removes expired entries eagerly and reports how many died.
	// Lazy expiry on Get makes this optional; it only bounds memory for
	// idle sessions.
	Sweep(ctx context.Context) (int, error)
}

// MemoryStore is the in-process Store. Entries die on TTL expiry
// (checked lazily on access), on FIFO eviction past capacity, and on
// session teardown.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]CachedDocument // sessionID -> urlKey -> doc
	ttl      time.Duration
	capacity int

	// OnRemove, when set, observes every entry leaving the store other
	// than by replacement: eviction, expiry, sweep and session teardown.
	OnRemove func(sessionID, url string)

	now func() time.Time // test seam
}

// NewMemoryStore builds a MemoryStore; non-positive arguments fall back
// to the defaults.
func NewMemoryStore(ttl time.Duration, capacity int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		sessions: make(map[string]map[string]CachedDocument),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, url string) (CachedDocument, bool, error) {
	key := urlKey(url)

	s.mu.RLock()
	doc, ok := s.sessions[sessionID][key]
	s.mu.RUnlock()
	if !ok {
		return CachedDocument{}, false, nil
	}
	if !doc.Expired(s.ttl, s.now()) {
		return doc, true, nil
	}

	// Expired: drop lazily. Re-check under the write lock since another
	// request may have refreshed the entry meanwhile.
	s.mu.Lock()
	cur, ok := s.sessions[sessionID][key]
	if ok && cur.Expired(s.ttl, s.now()) {
		s.remove(sessionID, key, cur.URL)
	}
	s.mu.Unlock()
	return CachedDocument{}, false, nil
}

func (s *MemoryStore) Put(_ context.Context, doc CachedDocument) error {
	key := urlKey(doc.URL)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[doc.SessionID]
	if entries == nil {
		entries = make(map[string]CachedDocument, s.capacity)
		s.sessions[doc.SessionID] = entries
	}
	if _, replacing := entries[key]; !replacing {
		for len(entries) >= s.capacity {
			s.evictOldest(doc.SessionID, entries)
		}
	}
	entries[key] = doc
	return nil
}

func (s *MemoryStore) DestroySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, doc := range s.sessions[sessionID] {
		s.remove(sessionID, key, doc.URL)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Len(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for sessionID, entries := range s.sessions {
		for key, doc := range entries {
			if doc.Expired(s.ttl, now) {
				s.remove(sessionID, key, doc.URL)
				removed++
			}
		}
		if len(entries) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return removed, nil
}

// evictOldest drops the session entry with the earliest CreatedAt.
// FIFO by insertion time, deliberately not LRU.
func (s *MemoryStore) evictOldest(sessionID string, entries map[string]CachedDocument) {
	var oldestKey, oldestURL string
	var oldestAt time.Time
	for key, doc := range entries {
		if oldestKey == "" || doc.CreatedAt.Before(oldestAt) {
			oldestKey, oldestURL, oldestAt = key, doc.URL, doc.CreatedAt
		}
	}
	if oldestKey != "" {
		s.remove(sessionID, oldestKey, oldestURL)
	}
}

// remove must be called with the write lock held.
func (s *MemoryStore) remove(sessionID, key, url string) {
	delete(s.sessions[sessionID], key)
	if s.OnRemove != nil {
		s.OnRemove(sessionID, url)
	}
}

var _ Store = (*MemoryStore)(nil)
