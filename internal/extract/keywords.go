package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// stopwords are dropped from naive keyword lists. Korean request endings
// ("추천해줘") are included so the product words survive.
var stopwords = map[string]bool{
	// Korean
	"추천": true, "추천해줘": true, "추천해주세요": true, "추천좀": true, "알려줘": true,
	"알려주세요": true, "해줘": true, "해주세요": true, "주세요": true, "좀": true,
	"어떤": true, "무슨": true, "뭐": true, "뭐가": true, "뭘": true, "있나요": true,
	"있어": true, "좋은": true, "괜찮은": true, "싶어": true, "싶어요": true, "사고": true,
	"살": true, "만한": true, "제일": true, "가장": true, "그리고": true, "또는": true,
	"이": true, "그": true, "저": true, "것": true, "거": true, "수": true,
	// English
	"a": true, "an": true, "the": true, "for": true, "to": true, "of": true,
	"and": true, "or": true, "me": true, "my": true, "i": true, "want": true,
	"need": true, "best": true, "good": true, "what": true, "which": true,
	"recommend": true, "please": true, "is": true, "are": true, "with": true,
	"in": true, "on": true, "some": true, "buy": true,
}

// particles are Korean postpositions trimmed from the end of a token.
// Longer suffixes come first.
var particles = []string{
	"에서는", "으로는", "이랑", "에서", "으로", "까지", "부터", "한테", "에게",
	"은", "는", "이", "가", "을", "를", "에", "의", "로", "와", "과", "도", "만", "랑",
}

// NormalizeQuery applies NFC composition, full/half-width folding and case
// folding so equivalent spellings compare equal.
func NormalizeQuery(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	s = cases.Fold().String(s)
	return strings.TrimSpace(s)
}

// NaiveKeywords derives search keywords from a query without a model. The
// first keyword is the content words joined back together; the rest are the
// individual words. At least one keyword is always returned: when every
// token is a stopword the whole normalized query is used.
func NaiveKeywords(query string) []string {
	normalized := NormalizeQuery(query)
	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var words []string
	for _, tok := range tokens {
		if stopwords[tok] {
			continue
		}
		tok = trimParticle(tok)
		if tok == "" || stopwords[tok] {
			continue
		}
		words = append(words, tok)
	}

	if len(words) == 0 {
		if normalized == "" {
			return []string{strings.TrimSpace(query)}
		}
		return []string{normalized}
	}

	out := make([]string, 0, len(words)+1)
	if len(words) > 1 {
		out = append(out, strings.Join(words, " "))
	}
	out = append(out, words...)
	return normalizeList(out, MaxKeywords)
}

// trimParticle drops one trailing particle when the remaining stem is at
// least two runes long, so short nouns like "가방" are left intact.
func trimParticle(tok string) string {
	for _, p := range particles {
		if !strings.HasSuffix(tok, p) {
			continue
		}
		stem := strings.TrimSuffix(tok, p)
		if len([]rune(stem)) >= 2 {
			return stem
		}
		return tok
	}
	return tok
}
