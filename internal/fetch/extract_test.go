package fetch

import (
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Boundary Conditions in Practice</title></head>
<body>
<nav>Home | About | Contact</nav>
<article>
<h1>Boundary Conditions in Practice</h1>
<p>Splitting a long document into pages sounds trivial until the split point
lands in the middle of a word. A reader following a pagination link expects
the next page to continue where the previous one stopped, with nothing lost
in between and nothing shown twice.</p>
<p>The usual compromise is to cut at the last line break inside a tolerance
window near the budget boundary, and to fall back to the hard boundary when
no such break exists.</p>
</article>
<footer>Copyright 2025</footer>
</body>
</html>`

func TestExtractPullsTitleAndText(t *testing.T) {
	ext, err := Extract(articleHTML, "https://example.com/post")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(ext.Title, "Boundary Conditions") {
		t.Fatalf("title = %q", ext.Title)
	}
	if !strings.Contains(ext.Text, "tolerance") {
		t.Fatalf("article body missing from text: %q", ext.Text)
	}
	if ext.HTML == "" {
		t.Fatalf("no article markup extracted")
	}
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	ext, err := Extract(articleHTML, "https://example.com/post")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Contains(ext.Text, "  ") {
		t.Fatalf("space runs survived normalization")
	}
	if strings.Contains(ext.Text, "\n\n\n") {
		t.Fatalf("blank-line runs survived normalization")
	}
}

func TestExtractBadBaseURL(t *testing.T) {
	// An unparsable page URL must not break extraction.
	if _, err := Extract(articleHTML, "::::"); err != nil {
		t.Fatalf("Extract with bad url: %v", err)
	}
}
