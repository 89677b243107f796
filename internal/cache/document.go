package cache

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// CachedDocument is one fetched-and-extracted document held for
// pagination. Visible only to requests presenting the SessionID it was
// created under.
type CachedDocument struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `json:"session_id"`
}

// Expired reports whether the entry is older than ttl at instant now.
func (d CachedDocument) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(d.CreatedAt) > ttl
}

// urlKey derives the store key for a URL. Hashing keeps keys short and
// delimiter-free regardless of URL contents.
func urlKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
