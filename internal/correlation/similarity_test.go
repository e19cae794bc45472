package correlation

import (
	"math"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"john_doe", "johndoe", 1},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("", ""); got != 0 {
		t.Errorf("empty strings must not be similar, got %f", got)
	}
	if got := Similarity("same", "same"); got != 1 {
		t.Errorf("identical strings: expected 1, got %f", got)
	}
	if got := Similarity("john_doe", "johndoe"); math.Abs(got-0.875) > 1e-9 {
		t.Errorf("expected 0.875, got %f", got)
	}
}

func TestTrigramOverlap(t *testing.T) {
	if got := TrigramOverlap("ab", "ab"); got != 0 {
		t.Errorf("strings shorter than a trigram have no overlap, got %f", got)
	}
	if got := TrigramOverlap("abcdef", "abcdef"); got != 1 {
		t.Errorf("identical strings: expected 1, got %f", got)
	}
	// abcd -> {abc, bcd}; bcde -> {bcd, cde}: 1 shared of 3.
	if got := TrigramOverlap("abcd", "bcde"); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected 1/3, got %f", got)
	}
}

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"url protocol and www", NormalizeURL, "HTTPS://www.Example.com/", "example.com"},
		{"url keeps path", NormalizeURL, "http://example.com/about/", "example.com/about"},
		{"host strips path and port", URLHost, "https://www.example.com:8443/x?y", "example.com"},
		{"location country", NormalizeLocation, "Berlin, Germany", "berlin"},
		{"location usa", NormalizeLocation, " San Francisco,  USA ", "san francisco"},
		{"display honorific", NormalizeDisplayName, "Dr.  Jane Smith", "jane smith"},
		{"display mrs", NormalizeDisplayName, "Mrs Jane Smith", "jane smith"},
		{"text punctuation", NormalizeText, "Hello, World!!  Again.", "hello world again"},
		{"strip separators", StripSeparators, "j.o_h-n", "john"},
		{"domain trailing dot", NormalizeDomain, "Example.COM.", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmailParts(t *testing.T) {
	local, domain, ok := EmailParts(" John.Doe@Example.com ")
	if !ok || local != "john.doe" || domain != "example.com" {
		t.Errorf("unexpected split: %q %q %v", local, domain, ok)
	}
	for _, bad := range []string{"", "nobody", "@example.com", "someone@"} {
		if _, _, ok := EmailParts(bad); ok {
			t.Errorf("EmailParts(%q) should fail", bad)
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	if got := TokenOverlap("jane smith", "jane doe"); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := TokenOverlap("", "jane"); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}
