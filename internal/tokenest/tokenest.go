// Package tokenest approximates token counts from character counts.
// The ratio is the usual rule of thumb: 1 token ~= 4 characters. Counts
// produced here bound response sizes; they are estimates, never exact.
package tokenest

// CharsPerToken is the assumed character-to-token ratio.
const CharsPerToken = 4

// Estimate returns the approximate token count for text. Rounds up so a
// page budget is never under-estimated.
func Estimate(text string) int {
	return EstimateChars(len(text))
}

// EstimateChars returns the approximate token count for n characters.
func EstimateChars(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// CharBudget converts a token budget into a character budget.
func CharBudget(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * CharsPerToken
}
