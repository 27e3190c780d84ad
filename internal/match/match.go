// Package match compares OCR-extracted fields against registered user
// data. All functions are pure; missing or empty inputs never match.
package match

import "strings"

// IdentityEquals reports whether two identity numbers are the same after
// trimming surrounding whitespace. Empty values never match.
func IdentityEquals(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return a == b
}

// NamesMatch reports whether an extracted name matches a registered name.
// Both are normalised (uppercased, Turkish diacritics folded to ASCII,
// non-letters dropped), then compared by equality, containment, or
// similarity above 0.8.
func NamesMatch(extracted, registered string) bool {
	if extracted == "" || registered == "" {
		return false
	}
	a := CleanName(extracted)
	b := CleanName(registered)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return Similarity(a, b) > 0.8
}

// turkishFold maps the Turkish diacritic set to ASCII so that "ŞİMŞEK"
// and "SIMSEK" normalise to the same string. Dotless ı folds to I.
var turkishFold = map[rune]rune{
	'Ç': 'C', 'Ğ': 'G', 'İ': 'I', 'Ö': 'O', 'Ş': 'S', 'Ü': 'U', 'ı': 'I',
}

// CleanName uppercases a name, folds Turkish diacritics to ASCII, keeps
// only A-Z and spaces, and collapses runs of whitespace.
func CleanName(name string) string {
	upper := strings.ToUpper(name)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if folded, ok := turkishFold[r]; ok {
			r = folded
		}
		if (r >= 'A' && r <= 'Z') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity is (maxLen - levenshtein) / maxLen. Two empty strings are
// fully similar.
func Similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Levenshtein(a, b)) / float64(maxLen)
}

// Levenshtein is the classical edit distance with unit costs.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
