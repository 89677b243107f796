package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

var (
	blankRuns = regexp.MustCompile(`\n\s*\n`)
	spaceRuns = regexp.MustCompile(` +`)
)

// Extracted is the readable core of an HTML page.
type Extracted struct {
	Title string
	Text  string
	HTML  string // cleaned article markup
}

// Extract runs readability over raw HTML and normalizes the text:
// blank-line runs collapse to one blank line, space runs to one space.
func Extract(html, pageURL string) (Extracted, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Extracted{}, fmt.Errorf("readability: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	return Extracted{
		Title: strings.TrimSpace(article.Title),
		Text:  text,
		HTML:  article.Content,
	}, nil
}
