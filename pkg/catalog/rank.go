package catalog

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum   = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	reMultiSpace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle folds a title for matching: NFKC width folding, diacritics
// removed, lower case, punctuation collapsed to single spaces.
func NormalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)

	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	s = strings.ToLower(b.String())
	s = reNonAlnum.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// candidateTitles lists every title an entity could be searched by.
func candidateTitles(e Entity) []string {
	titles := []string{e.CanonicalTitle()}
	for _, t := range e.Titles() {
		titles = append(titles, t)
	}
	var abbreviated []string
	if err := e.Decode("abbreviatedTitles", &abbreviated); err == nil {
		titles = append(titles, abbreviated...)
	}
	return titles
}

// titleDistance returns the best fuzzy distance between text and any title of
// e, or -1 when no title contains the text as a subsequence.
func titleDistance(text string, e Entity) int {
	best := -1
	for _, title := range candidateTitles(e) {
		normalized := NormalizeTitle(title)
		if normalized == "" {
			continue
		}
		if d := fuzzy.RankMatchNormalizedFold(text, normalized); d >= 0 && (best < 0 || d < best) {
			best = d
		}
	}
	return best
}

// RankByTitle returns a copy of items ordered by fuzzy closeness of their
// titles to text. Items that do not match keep their relative order after
// the matches.
func RankByTitle(items []Entity, text string) []Entity {
	text = NormalizeTitle(text)
	out := make([]Entity, len(items))
	copy(out, items)
	if text == "" {
		return out
	}

	distances := make(map[Identity]int, len(out))
	for _, item := range out {
		distances[item.Identity()] = titleDistance(text, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := distances[out[i].Identity()], distances[out[j].Identity()]
		switch {
		case di < 0:
			return false
		case dj < 0:
			return true
		default:
			return di < dj
		}
	})
	return out
}
