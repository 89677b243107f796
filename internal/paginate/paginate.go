// Package paginate splits extracted document text into token-budget-sized
// pages with boundary-aware split points.
package paginate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/docfetch/internal/tokenest"
)

// ErrPageOutOfRange is returned when the requested page lies beyond the
// document. Callers detect walking off the end instead of getting a
// silently clamped page.
var ErrPageOutOfRange = errors.New("page out of range")

// Page is one slice of a document plus pagination metadata. Offset and
// Limit are character positions of the slice within the full text.
type Page struct {
	Text        string
	Number      int
	PageSize    int
	TotalPages  int
	TotalTokens int
	HasNext     bool
	HasPrevious bool
	Offset      int
	Limit       int
}

// boundaryWindow is the trailing fraction of a page budget in which a
// newline is accepted as the split point.
const boundaryWindow = 0.8

// Paginate carves page number `page` (1-indexed) out of fullText under a
// budget of pageSize estimated tokens. Split points prefer the last
// newline in the trailing 20% of each budget window; consecutive pages
// share those adjusted boundaries, so pages tile the text with no
// character dropped or duplicated. Deterministic: identical inputs yield
// identical output.
func Paginate(fullText string, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		return Page{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	budget := tokenest.CharBudget(pageSize)
	total := len(fullText)

	totalPages := (total + budget - 1) / budget
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 || page > totalPages {
		return Page{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, totalPages)
	}

	start := 0
	if page > 1 {
		start = boundary(fullText, page-1, budget)
	}
	end := boundary(fullText, page, budget)

	return Page{
		Text:        fullText[start:end],
		Number:      page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalTokens: tokenest.EstimateChars(total),
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
		Offset:      start,
		Limit:       end,
	}, nil
}

// boundary returns the end position of page k. The raw position is
// k*budget; when that falls mid-document the cut moves back to just after
// the last newline in the trailing 20% of the window, if one exists.
// Page k+1 recomputes the same value as its start, so no walk over
// earlier pages is ever needed.
func boundary(fullText string, k, budget int) int {
	raw := k * budget
	if raw >= len(fullText) {
		return len(fullText)
	}
	winStart := (k - 1) * budget
	window := fullText[winStart:raw]
	idx := strings.LastIndexByte(window, '\n')
	if idx >= 0 && float64(idx) > float64(budget)*boundaryWindow {
		return winStart + idx + 1 // keep the newline with this page
	}
	return raw
}
