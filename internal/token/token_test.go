package token

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tok := Encode("https://x", "s1", 2)
	url, page, err := Decode(tok, "s1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if url != "https://x" || page != 2 {
		t.Fatalf("got (%q, %d), want (https://x, 2)", url, page)
	}
}

func TestDecodeSessionMismatch(t *testing.T) {
	tok := Encode("https://x", "s1", 2)
	_, _, err := Decode(tok, "s2")
	if !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
}

func TestDecodeURLWithColons(t *testing.T) {
	// URLs carry ':' freely; the codec splits from the right.
	u := "https://example.com:8443/a:b?x=1:2"
	tok := Encode(u, "sess-abc", 7)
	url, page, err := Decode(tok, "sess-abc")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if url != u || page != 7 {
		t.Fatalf("got (%q, %d), want (%q, 7)", url, page, u)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":       "%%%not-base64%%%",
		"no delimiters":    base64.StdEncoding.EncodeToString([]byte("nodelimiters")),
		"non-numeric page": base64.StdEncoding.EncodeToString([]byte("https://x:s1:abc")),
		"empty url":        base64.StdEncoding.EncodeToString([]byte(":s1:3")),
	}
	for name, tok := range cases {
		_, _, err := Decode(tok, "s1")
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestTokenIsReusable(t *testing.T) {
	tok := Encode("https://x", "s1", 3)
	for i := 0; i < 3; i++ {
		if _, _, err := Decode(tok, "s1"); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	if Encode("https://x", "s1", 3) != tok {
		t.Fatalf("encoding is not stable")
	}
}
