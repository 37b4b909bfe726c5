package postgres

import "strings"

// tokenize lowercases and splits s on whitespace, matching the token-based
// matching scheme from spec.md §4.1.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// tokenMatches reports whether query token q matches candidate token c via
// case-insensitive substring containment, or — for tokens of length >= 4 —
// within edit distance <= 2 (typo tolerance), per spec.md §4.1.
func tokenMatches(q, c string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(c, q) {
		return true
	}
	if len(q) >= 4 && levenshtein(q, c) <= 2 {
		return true
	}
	return false
}

// fieldMatchesQuery reports whether every query token matches at least one
// token in field (AND semantics across query tokens).
func fieldMatchesQuery(field string, queryTokens []string) bool {
	fieldTokens := tokenize(field)
	for _, q := range queryTokens {
		matched := false
		for _, c := range fieldTokens {
			if tokenMatches(q, c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// relevanceScore gives candidates with exact/substring matches across more
// fields and tighter edit distances a higher score, used to rank results
// before the dateAdded-descending tiebreak (spec.md §4.1).
func relevanceScore(title, artist, album string, queryTokens []string) int {
	score := 0
	for _, field := range []struct {
		value  string
		weight int
	}{{title, 3}, {artist, 2}, {album, 1}} {
		fieldTokens := tokenize(field.value)
		for _, q := range queryTokens {
			best := -1
			for _, c := range fieldTokens {
				if c == q {
					best = 0
					break
				}
				if strings.Contains(c, q) {
					if best == -1 || best > 1 {
						best = 1
					}
					continue
				}
				if len(q) >= 4 {
					if d := levenshtein(q, c); d <= 2 && (best == -1 || best > 2+d) {
						best = 2 + d
					}
				}
			}
			if best >= 0 {
				score += field.weight * (4 - best)
			}
		}
	}
	return score
}

// levenshtein computes classic edit distance with a single-row DP, cheap
// enough for the short artist/title tokens this is run against.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
