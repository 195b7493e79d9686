package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaiveKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"korean request", "겨울용 패딩 재킷 추천해줘", []string{"겨울용 패딩 재킷", "겨울용", "패딩", "재킷"}},
		{"particles trimmed", "가방을 추천해줘", []string{"가방"}},
		{"short stem kept", "차를 알려줘", []string{"차를"}},
		{"english", "Best wireless earbuds for running", []string{"wireless earbuds running", "wireless", "earbuds", "running"}},
		{"full width folded", "ＡＩＲＰＯＤＳ 추천", []string{"airpods"}},
		{"punctuation split", "노트북, 태블릿?", []string{"노트북 태블릿", "노트북", "태블릿"}},
		{"all stopwords", "추천해줘", []string{"추천해줘"}},
		{"duplicates collapse", "패딩 패딩", []string{"패딩 패딩", "패딩"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NaiveKeywords(tt.query))
		})
	}
}

func TestNaiveKeywords_NeverEmpty(t *testing.T) {
	t.Parallel()

	for _, q := range []string{"?", "the a an", "좀 뭐", "x"} {
		assert.NotEmpty(t, NaiveKeywords(q), q)
	}
}

func TestNaiveKeywords_Capped(t *testing.T) {
	t.Parallel()

	q := "one two three four five six seven eight nine ten"
	assert.Len(t, NaiveKeywords(q), MaxKeywords)
}

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	// Decomposed jamo compose to the same syllables.
	decomposed := "\u1111\u1162\u1103\u1175\u11bc"
	assert.Equal(t, "패딩", NormalizeQuery(decomposed))
	assert.Equal(t, "iphone 15", NormalizeQuery("  ＩＰｈｏｎｅ １５ "))
}

func TestCleanContent(t *testing.T) {
	t.Parallel()

	in := "line one\n\n\n\nline   two\t\tend"
	assert.Equal(t, "line one\n\nline two end", CleanContent(in, 0))
}

func TestCleanContent_TruncatesOnWordBoundary(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("word ", 40) // 200 chars
	out := CleanContent(in, 50)
	assert.True(t, strings.HasSuffix(out, "..."))
	body := strings.TrimSuffix(out, "...")
	assert.LessOrEqual(t, len(body), 50)
	assert.Greater(t, len(body), 40)
	assert.False(t, strings.HasSuffix(body, " "))
	assert.True(t, strings.HasSuffix(body, "word"))
}

func TestCleanContent_HardCutWithoutSpaces(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("가", 30)
	out := CleanContent(in, 10)
	assert.Equal(t, strings.Repeat("가", 10)+"...", out)
}

func TestCleanContent_ShortUnchanged(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "짧은 글", CleanContent("짧은 글", 100))
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown header", "## 삼성 비스포크 냉장고\n본문", "삼성 비스포크 냉장고"},
		{"first mid line", "짧음\n이 줄은 제목으로 쓰기에 충분히 길다\n다음", "이 줄은 제목으로 쓰기에 충분히 길다"},
		{"empty", "  ", "제목 없음"},
		{"short text", "짧은 글", "짧은 글"},
		{"long line falls back to 50", strings.Repeat("a", 120), strings.Repeat("a", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractTitle(tt.in))
		})
	}
}

func TestExtractPrices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"won", "가격 12,900원 할인", []string{"12,900원"}},
		{"won sign", "₩ 1,500,000", []string{"1,500,000원"}},
		{"krw", "39000 KRW", []string{"39000원"}},
		{"man won", "약 10만원대", []string{"10만원"}},
		{"cheon won", "5천원 쿠폰", []string{"5천원"}},
		{"dollar", "only $12.99 today", []string{"$12.99"}},
		{"dedup", "12,900원 ... ₩12,900", []string{"12,900원"}},
		{"none", "가격 문의", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractPrices(tt.in))
		})
	}
}

func TestExtractRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"4.5/5 stars", 4.5, true},
		{"평점: 4.8", 4.8, true},
		{"★4.2 (1,203)", 4.2, true},
		{"Rating 3", 3, true},
		{"만족도 4/5", 4, true},
		{"출시일 2024/5/1", 0, false},
		{"리뷰 12/5 작성", 0, false},
		{"2.5/5.0", 2.5, true},
		{"평점 9.5", 0, false},
		{"no rating", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractRating(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestProductFallback_NothingFound(t *testing.T) {
	t.Parallel()

	_, ok := ProductSchema{}.Fallback("")
	assert.False(t, ok)
}
