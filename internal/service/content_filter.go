package service

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultBannedTerms is used when BANNED_WORDS is not configured.
var DefaultBannedTerms = []string{
	"fuck", "shit", "bitch", "cunt", "bastard", "asshole", "dick", "pussy",
	"whore", "slut", "faggot", "nigger", "retard", "motherfucker",
}

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"8", "b",
)

type bannedTerm struct {
	normalized string
	spaced     *regexp.Regexp
}

// ContentFilter flags text containing any banned term, including
// leetspeak and letter-spaced spellings.
type ContentFilter struct {
	terms []bannedTerm
}

func NewContentFilter(terms []string) *ContentFilter {
	f := &ContentFilter{}
	seen := make(map[string]bool, len(terms))
	for _, raw := range terms {
		n := strings.ReplaceAll(Normalize(raw), " ", "")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true

		chars := make([]string, 0, len(n))
		for _, r := range n {
			chars = append(chars, regexp.QuoteMeta(string(r)))
		}
		f.terms = append(f.terms, bannedTerm{
			normalized: n,
			spaced:     regexp.MustCompile(strings.Join(chars, `\s*`)),
		})
	}
	return f
}

// Normalize lowercases text, drops everything except letters, digits and
// whitespace, collapses whitespace runs, undoes leetspeak and trims.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(leetReplacer.Replace(b.String()))
}

// IsProhibited reports whether text matches any banned term. Whole-word
// matches are a subset of substring containment, so only containment and
// the spaced-out form are tested.
func (f *ContentFilter) IsProhibited(text string) bool {
	normalized := Normalize(text)
	if normalized == "" {
		return false
	}

	for _, term := range f.terms {
		if strings.Contains(normalized, term.normalized) {
			return true
		}
		if term.spaced.MatchString(normalized) {
			return true
		}
	}
	return false
}

// Terms returns the normalized banned terms.
func (f *ContentFilter) Terms() []string {
	out := make([]string, len(f.terms))
	for i, t := range f.terms {
		out[i] = t.normalized
	}
	return out
}
