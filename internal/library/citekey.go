// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are skipped when choosing the title word of a citation key.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "in": true,
	"of": true, "for": true, "to": true, "and": true, "with": true,
}

// GenerateCitationKey builds the base key lastname + year + first
// significant title word, e.g. "vaswani2017attention". A missing year
// becomes "nodate". The result is lowercase ASCII alphanumerics; accented
// letters are folded to their base letter.
//
// The base key does not disambiguate collisions; Index.GenerateCitationKey
// appends a suffix when the base key is taken.
func GenerateCitationKey(title string, authors []string, year *int) string {
	var b strings.Builder
	b.WriteString(firstAuthorLastName(authors))
	if year != nil && *year > 0 {
		b.WriteString(strconv.Itoa(*year))
	} else {
		b.WriteString("nodate")
	}
	b.WriteString(firstSignificantWord(title))
	return b.String()
}

func firstAuthorLastName(authors []string) string {
	for _, a := range authors {
		name := strings.TrimSpace(a)
		if name == "" {
			continue
		}
		// "Last, First" form.
		if i := strings.Index(name, ","); i > 0 {
			if last := keyPart(name[:i]); last != "" {
				return last
			}
		}
		fields := strings.Fields(name)
		if last := keyPart(fields[len(fields)-1]); last != "" {
			return last
		}
	}
	return "anonymous"
}

func firstSignificantWord(title string) string {
	for _, w := range strings.Fields(title) {
		word := keyPart(w)
		if word == "" || stopWords[word] {
			continue
		}
		return word
	}
	return ""
}

// foldAccents strips combining marks after canonical decomposition.
// Transformers carry state, so each call gets its own chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// keyPart lowercases s, folds accents, and drops everything but ASCII
// letters and digits.
func keyPart(s string) string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// suffix returns the n-th disambiguator: 0 → "a", 25 → "z", 26 → "aa".
func suffix(n int) string {
	var out []byte
	for {
		out = append([]byte{byte('a' + n%26)}, out...)
		n = n/26 - 1
		if n < 0 {
			return string(out)
		}
	}
}
