package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
)

// MaxProducts caps the number of facts kept per page.
const MaxProducts = 10

// ProductList is the decoded product extraction output. Both
// {"products":[...]} and a bare array are accepted.
type ProductList struct {
	Products []model.ProductFact `json:"products"`
}

// UnmarshalJSON accepts either an object with a products key or a bare array.
func (p *ProductList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &p.Products)
	}
	type plain ProductList
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = ProductList(v)
	return nil
}

// ProductSchema validates product facts extracted from one page.
type ProductSchema struct {
	// SourceURL is stamped onto every fact.
	SourceURL string
}

// Name implements Schema.
func (ProductSchema) Name() string { return "products" }

// Validate implements Schema. Every product needs a name and a rating in
// [0, 5]; an empty list is rejected.
func (s ProductSchema) Validate(p *ProductList) error {
	if len(p.Products) == 0 {
		return eris.New("products: at least one required")
	}
	if len(p.Products) > MaxProducts {
		p.Products = p.Products[:MaxProducts]
	}
	for i := range p.Products {
		f := &p.Products[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return eris.Errorf("products[%d].name: required", i)
		}
		if f.Rating < 0 || f.Rating > 5 {
			return eris.Errorf("products[%d].rating: %v outside 0..5", i, f.Rating)
		}
		f.Price = strings.TrimSpace(f.Price)
		if f.SourceURL == "" {
			f.SourceURL = s.SourceURL
		}
	}
	return nil
}

// Fallback implements Schema by reading title, price and rating straight
// from page text.
func (s ProductSchema) Fallback(text string) (ProductList, bool) {
	if strings.TrimSpace(text) == "" {
		return ProductList{}, false
	}
	title := ExtractTitle(text)
	prices := ExtractPrices(text)
	rating, hasRating := ExtractRating(text)

	if title == untitled && len(prices) == 0 && !hasRating {
		return ProductList{}, false
	}

	fact := model.ProductFact{
		Name:      title,
		Rating:    rating,
		SourceURL: s.SourceURL,
	}
	if len(prices) > 0 {
		fact.Price = prices[0]
		if len(prices) > 1 {
			fact.Attributes = map[string]string{"other_prices": strings.Join(prices[1:], ", ")}
		}
	}
	return ProductList{Products: []model.ProductFact{fact}}, true
}

const untitled = "제목 없음"

var headerPrefixRe = regexp.MustCompile(`^#+\s*`)

// ExtractTitle picks a title from scraped text: the first markdown header,
// else the first line of 10 to 100 characters, else the first 50 characters.
func ExtractTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return untitled
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(headerPrefixRe.ReplaceAllString(line, "")); t != "" {
				return t
			}
			continue
		}
		if n := len([]rune(line)); n >= 10 && n <= 100 {
			return line
		}
	}
	r := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(r) > 50 {
		return strings.TrimSpace(string(r[:50])) + "..."
	}
	return string(r)
}

var pricePatterns = []struct {
	re     *regexp.Regexp
	format func(m []string) string
}{
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*만\s*원`), func(m []string) string { return m[1] + "만원" }},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*천\s*원`), func(m []string) string { return m[1] + "천원" }},
	{regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)\s*원`), func(m []string) string { return m[1] + "원" }},
	{regexp.MustCompile(`₩\s*(\d{1,3}(?:,\d{3})+|\d+)`), func(m []string) string { return m[1] + "원" }},
	{regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)\s*KRW`), func(m []string) string { return m[1] + "원" }},
	{regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`), func(m []string) string { return "$" + m[1] }},
}

// ExtractPrices returns distinct price mentions in the order the patterns
// are tried, normalized to "N원" or "$N".
func ExtractPrices(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range pricePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v := p.format(m)
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if len(out) == 5 {
				return out
			}
		}
	}
	return out
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^\d.])(\d(?:\.\d+)?)\s*/\s*5(?:\.0)?\b`),
	regexp.MustCompile(`(?:평점|별점|rating)\s*:?\s*(\d(?:\.\d+)?)`),
	regexp.MustCompile(`★\s*(\d(?:\.\d+)?)`),
}

// ExtractRating finds the first rating in [0, 5] mentioned in text.
func ExtractRating(text string) (float64, bool) {
	lower := strings.ToLower(text)
	for _, re := range ratingPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil && v >= 0 && v <= 5 {
				return v, true
			}
		}
	}
	return 0, false
}
