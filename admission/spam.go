package admission

import "strings"

// Thresholds below are behavioral contracts, not tuning knobs.
const (
	maxCharRun        = 10
	upperDensityLimit = 0.7
	phraseMaxLength   = 20
	phraseMinRepeats  = 5
	specialSpanLength = 50
	abuseSignature    = "test"
)

// IsSpam applies a fixed battery of pattern checks; any hit classifies the
// content as spam. Deterministic, no external calls.
func IsSpam(content string) bool {
	return hasLongCharRun(content) ||
		hasHighUppercaseDensity(content) ||
		hasRepeatedPhrase(content) ||
		isSpecialCharSpan(content) ||
		hasAbuseSignature(content)
}

// hasLongCharRun reports a single character repeated more than maxCharRun
// times consecutively.
func hasLongCharRun(content string) bool {
	var (
		last rune
		run  int
	)

	for _, r := range content {
		if r == last {
			run++
			if run > maxCharRun {
				return true
			}

			continue
		}

		last, run = r, 1
	}

	return false
}

// hasHighUppercaseDensity reports when A-Z characters make up more than
// upperDensityLimit of the content.
func hasHighUppercaseDensity(content string) bool {
	var upper, total int

	for _, r := range content {
		if r >= 'A' && r <= 'Z' {
			upper++
		}

		total++
	}

	if total == 0 {
		return false
	}

	return float64(upper)/float64(total) > upperDensityLimit
}

// hasRepeatedPhrase reports a short phrase (1 to phraseMaxLength chars)
// repeated phraseMinRepeats or more times back to back, case-insensitive.
// Uniform runs of a single character are excluded; those fall under the
// hasLongCharRun threshold instead.
func hasRepeatedPhrase(content string) bool {
	r := []rune(strings.ToLower(content))

	for i := 0; i < len(r); i++ {
		for l := 1; l <= phraseMaxLength && i+l*phraseMinRepeats <= len(r); l++ {
			phrase := r[i : i+l]
			if isUniform(phrase) {
				continue
			}

			if repeatsAt(r, i, l) >= phraseMinRepeats {
				return true
			}
		}
	}

	return false
}

func isUniform(phrase []rune) bool {
	for i := 1; i < len(phrase); i++ {
		if phrase[i] != phrase[0] {
			return false
		}
	}

	return true
}

func repeatsAt(r []rune, start, length int) int {
	count := 1

	for next := start + length; next+length <= len(r); next += length {
		if !equalRunes(r[start:start+length], r[next:next+length]) {
			break
		}

		count++
	}

	return count
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// isSpecialCharSpan reports content made up entirely of specialSpanLength or
// more consecutive non-alphanumeric, non-whitespace characters.
func isSpecialCharSpan(content string) bool {
	r := []rune(content)
	if len(r) < specialSpanLength {
		return false
	}

	for _, c := range r {
		if isAlphanumeric(c) || isWhitespace(c) {
			return false
		}
	}

	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// hasAbuseSignature catches the literal "test" pattern repeated five or more
// times contiguously, a known abuse signature.
func hasAbuseSignature(content string) bool {
	return strings.Contains(strings.ToLower(content), strings.Repeat(abuseSignature, phraseMinRepeats))
}
