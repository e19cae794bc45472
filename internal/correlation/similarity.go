package correlation

import (
	"regexp"
	"strings"
	"unicode"
)

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
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
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns 1 - distance/maxLen in [0,1]. Two empty strings are
// considered dissimilar so that missing values never match.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// Trigrams returns the set of character trigrams of s.
func Trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	out := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = struct{}{}
	}
	return out
}

// TrigramOverlap returns the Jaccard overlap of the trigram sets of a and b.
func TrigramOverlap(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

var (
	separatorChars   = "-_."
	whitespaceRun    = regexp.MustCompile(`\s+`)
	trailingDigits   = regexp.MustCompile(`\d+$`)
	trailingSepDigit = regexp.MustCompile(`[-_.]+\d+$`)
	countrySuffix    = regexp.MustCompile(`,\s*(usa|us|united states( of america)?|uk|united kingdom|gb|great britain|canada|ca|germany|de|deutschland|france|fr|australia|au|india|in|netherlands|nl|spain|es|italy|it|brazil|br)$`)
	honorificPrefix  = regexp.MustCompile(`^(mr|mrs|ms|miss|mx|dr|prof|sir|madam|rev)\.?\s+`)
)

// StripSeparators removes every '-', '_' and '.' from s.
func StripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(separatorChars, r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeText lowercases, strips punctuation and collapses whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// NormalizeLocation lowercases, trims and drops a trailing country suffix
// ("Berlin, Germany" becomes "berlin").
func NormalizeLocation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = countrySuffix.ReplaceAllString(s, "")
	return strings.Trim(s, " ,.")
}

// NormalizeDisplayName lowercases, drops honorifics and collapses whitespace.
func NormalizeDisplayName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = honorificPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NormalizeURL lowercases and strips the protocol, a leading "www." and any
// trailing slash.
func NormalizeURL(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

// URLHost returns the normalized host part of a URL or bare domain.
func URLHost(s string) string {
	s = NormalizeURL(s)
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s, "]") {
		s = s[:i]
	}
	return s
}

// NormalizeDomain lowercases and trims a domain, dropping a trailing dot.
func NormalizeDomain(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// EmailParts splits a normalized address into local part and domain.
func EmailParts(email string) (local, domain string, ok bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}

// TokenOverlap returns the shared-token ratio of two whitespace-separated
// names relative to the shorter one.
func TokenOverlap(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		set[t] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(seen), len(set)))
}
