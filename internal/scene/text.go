// File: internal/scene/text.go
package scene

import "strings"

// MeasureFunc returns the rendered width of a string in pixels.
type MeasureFunc func(s string) float64

const ellipsis = "…"

// WrapText word-wraps s to maxWidth, keeping at most maxLines lines. The last
// line is ellipsis-truncated when the remainder does not fit. Words longer
// than a full line are hard-truncated rather than overflowing.
func WrapText(s string, measure MeasureFunc, maxWidth float64, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 || maxLines <= 0 || maxWidth <= 0 {
		return nil
	}
	lines := make([]string, 0, maxLines)
	cur := ""
	for i := 0; i < len(words); i++ {
		candidate := words[i]
		if cur != "" {
			candidate = cur + " " + words[i]
		}
		if measure(candidate) <= maxWidth {
			cur = candidate
			continue
		}
		if cur == "" {
			// single word wider than the line
			cur = words[i]
		} else {
			i-- // reconsider this word on the next line
		}
		if len(lines) == maxLines-1 {
			rest := strings.Join(append([]string{cur}, words[i+1:]...), " ")
			return append(lines, TruncateWithEllipsis(rest, measure, maxWidth))
		}
		lines = append(lines, TruncateWithEllipsis(cur, measure, maxWidth))
		cur = ""
	}
	if cur != "" {
		lines = append(lines, TruncateWithEllipsis(cur, measure, maxWidth))
	}
	return lines
}

// TruncateWithEllipsis fits s into maxWidth, binary-searching the longest
// prefix whose width plus an ellipsis still fits. Strings that already fit
// are returned unchanged.
func TruncateWithEllipsis(s string, measure MeasureFunc, maxWidth float64) string {
	if measure(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if measure(strings.TrimRight(string(runes[:mid]), " ")+ellipsis) <= maxWidth {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ellipsis
	}
	return strings.TrimRight(string(runes[:lo]), " ") + ellipsis
}
