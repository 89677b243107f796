// Package token encodes and decodes continuation tokens: opaque,
// session-bound pointers to "this document, this page". Tokens are
// stateless and re-derivable; opacity is for callers, not a security
// boundary.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned for tokens that do not decode to the
	// expected url:session:page shape.
	ErrMalformed = errors.New("malformed continuation token")
	// ErrSessionMismatch is returned when a structurally valid token was
	// issued under a different session than the caller's.
	ErrSessionMismatch = errors.New("continuation token session mismatch")
)

const sep = ":"

// Encode packs url, session and page into an opaque token. The payload is
// url:session:page; URLs may contain ':' so Decode splits from the right.
func Encode(url, sessionID string, page int) string {
	payload := url + sep + sessionID + sep + strconv.Itoa(page)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// Decode unpacks a token and verifies it belongs to callerSession.
// Returns ErrMalformed for undecodable input and ErrSessionMismatch when
// the embedded session differs from the caller's.
func Decode(tok, callerSession string) (url string, page int, err error) {
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	payload := string(raw)

	i := strings.LastIndex(payload, sep)
	if i < 0 {
		return "", 0, fmt.Errorf("%w: missing page field", ErrMalformed)
	}
	page, err = strconv.Atoi(payload[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: non-numeric page", ErrMalformed)
	}
	rest := payload[:i]

	j := strings.LastIndex(rest, sep)
	if j < 0 {
		return "", 0, fmt.Errorf("%w: missing session field", ErrMalformed)
	}
	url, session := rest[:j], rest[j+1:]
	if url == "" {
		return "", 0, fmt.Errorf("%w: empty url", ErrMalformed)
	}

	if session != callerSession {
		return "", 0, ErrSessionMismatch
	}
	return url, page, nil
}
