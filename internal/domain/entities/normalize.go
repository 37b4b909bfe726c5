package entities

import "strings"

// normalizeForMatch folds an artist/title string down to a comparison key:
// lowercase, trimmed, internal whitespace collapsed.
func normalizeForMatch(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(fields, " ")
}

// ArtistSortKey returns the key an artist name sorts by: case-insensitive,
// with a leading "The " dropped so "The Beatles" sorts as "Beatles".
func ArtistSortKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "the ")
	return key
}

// ArtistGroupLetter returns the letter an artist groups under in an
// alphabetical listing: its first letter, or "#" for names that don't start
// with a letter (e.g. purely numeric names like "2Pac").
func ArtistGroupLetter(name string) string {
	key := ArtistSortKey(name)
	if key == "" {
		return "#"
	}
	r := rune(key[0])
	if r >= 'a' && r <= 'z' {
		return strings.ToUpper(string(r))
	}
	return "#"
}
