package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/model"
)

const analyzeSystem = `당신은 전문 쇼핑 컨설턴트입니다. 사용자의 쇼핑 질문을 분석하여 상품 검색 전략을 세웁니다.
반드시 JSON 객체 하나만 출력하세요.`

const analysisSchemaHint = `다음 형식의 JSON으로만 답하세요:
{"intent": "purchase|compare|research|recommend",
 "main_product": "주요 상품",
 "price_range": "가격대 또는 \"가격 정보 없음\"",
 "keywords": ["중요도 순 검색 키워드 3~8개"],
 "categories": ["대상 카테고리"],
 "site_hints": ["언급된 쇼핑몰 도메인"]}`

// analyzePrompt renders the analysis request, using the profile's template
// when it sets one.
func analyzePrompt(p config.Profile, query string) string {
	if p.AnalysisPrompt != "" {
		return strings.ReplaceAll(p.AnalysisPrompt, config.UserQueryPlaceholder, query)
	}
	return fmt.Sprintf(`사용자 질문: %q

분석 지침:
- main_product: 사용자가 찾는 정확한 상품명이나 카테고리 (예: "패딩 점퍼", "무선 이어폰")
- keywords: 온라인 쇼핑몰에서 실제로 쓰이는 검색어를 중요도 순으로. 핵심 상품명, 특징(방수, 경량), 브랜드, 용도/시즌, 성별/연령, 가격대 표현을 고려하세요.
- price_range: 금액이 언급되면 그대로("10만원 이하"), 아니면 "가격 정보 없음"
- categories: 패션, 전자제품, 생활용품, 스포츠/레저, 뷰티, 가전, 도서 등
- intent: purchase(바로 구매), compare(비교), research(정보 수집), recommend(추천 요청)
- site_hints: 사용자가 특정 쇼핑몰을 언급한 경우에만`, query)
}

const factsSystem = `당신은 상품 정보 추출기입니다. 주어진 페이지 텍스트에 실제로 있는 상품만 JSON으로 추출하세요.
없는 정보를 만들어내지 마세요.`

const factsSchemaHint = `다음 형식의 JSON으로만 답하세요:
{"products": [{"name": "상품명", "price": "가격 문자열", "rating": 0.0, "attributes": {"속성": "값"}}]}
rating은 0~5 사이 숫자이며 모르면 0입니다.`

func factsPrompt(page model.ScrapedPage) string {
	return fmt.Sprintf("URL: %s\n제목: %s\n\n페이지 텍스트:\n%s", page.URL, page.Title, page.RawText)
}

const synthesizeSystem = `당신은 전문 쇼핑 컨설턴트입니다. 수집된 근거만을 바탕으로 사용자의 질문에 답하세요.

답변 원칙:
- 상품마다 상품명, 추천 이유, 가격 정보, 장점, 주의사항, 구매처를 정리하세요.
- 가능하면 경제적 선택, 균형 선택, 프리미엄 선택으로 나누어 제시하세요.
- 수집된 정보가 부족하면 솔직하게 한계를 인정하세요. 근거에 없는 상품명, 가격, 평점을 지어내지 마세요.
- 가격은 변동될 수 있음을 알려주세요.
- 이전 대화가 있다면 그 맥락을 이어서 답하세요.`

func synthesizeSystemPrompt(p config.Profile) string {
	if p.SystemPrompt != "" {
		return p.SystemPrompt
	}
	return synthesizeSystem
}

// verbosityGuide maps a profile's verbosity onto answer length guidance.
var verbosityGuide = map[config.Verbosity]string{
	config.VerbosityBrief:    "답변 길이: 핵심만 5문장 이내로 간결하게.",
	config.VerbosityStandard: "답변 길이: 상품 2~3개를 중심으로 적당한 분량으로.",
	config.VerbosityDetailed: "답변 길이: 가격대별 추천과 구매 가이드를 포함해 자세하게.",
}

// evidenceLevel says how much the synthesis prompt has to work with.
type evidenceLevel int

const (
	evidenceNone evidenceLevel = iota
	evidenceSnippets
	evidencePages
)

const (
	maxEvidenceHits  = 10
	maxSnippetLength = 200
	maxFactsPerPage  = 5
)

// buildEvidence assembles the context block for synthesis from scraped pages,
// falling back to search snippets.
func buildEvidence(state *model.PipelineState) (string, evidenceLevel) {
	var sb strings.Builder

	var pages []model.ScrapedPage
	for _, h := range state.SearchResults {
		if p, ok := state.ScrapedPages[h.URL]; ok && p.Status == model.PageStatusOK {
			pages = append(pages, p)
		}
	}

	if len(pages) > 0 {
		sb.WriteString("수집된 상품 페이지:\n")
		for i, p := range pages {
			fmt.Fprintf(&sb, "\n[%d] %s (%s)\n", i+1, p.Title, p.URL)
			facts := p.Facts
			if len(facts) > maxFactsPerPage {
				facts = facts[:maxFactsPerPage]
			}
			for _, f := range facts {
				sb.WriteString("- " + formatFact(f) + "\n")
			}
			if len(facts) == 0 && p.RawText != "" {
				sb.WriteString(truncate(p.RawText, maxSnippetLength*2) + "\n")
			}
		}
		writeSnippets(&sb, state.SearchResults)
		return sb.String(), evidencePages
	}

	if len(state.SearchResults) > 0 {
		writeSnippets(&sb, state.SearchResults)
		return sb.String(), evidenceSnippets
	}
	return "", evidenceNone
}

func writeSnippets(sb *strings.Builder, hits []model.SearchHit) {
	if len(hits) == 0 {
		return
	}
	sb.WriteString("\n검색 결과 요약:\n")
	for i, h := range hits {
		if i == maxEvidenceHits {
			break
		}
		fmt.Fprintf(sb, "- %s: %s (%s)\n", h.Title, truncate(h.Snippet, maxSnippetLength), h.URL)
	}
}

func formatFact(f model.ProductFact) string {
	parts := []string{f.Name}
	if f.Price != "" {
		parts = append(parts, "가격 "+f.Price)
	}
	if f.Rating > 0 {
		parts = append(parts, fmt.Sprintf("평점 %.1f", f.Rating))
	}
	keys := make([]string, 0, len(f.Attributes))
	for k := range f.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+" "+f.Attributes[k])
	}
	return strings.Join(parts, ", ")
}

func synthesizePrompt(state *model.PipelineState, evidence string, level evidenceLevel, verbosity config.Verbosity) string {
	var sb strings.Builder
	if a := state.Analysis; a != nil {
		fmt.Fprintf(&sb, "질문 분석: 의도=%s, 상품=%s, 가격대=%s, 키워드=%s\n\n",
			a.Intent, a.MainProduct, a.PriceRange, strings.Join(a.Keywords, ", "))
	}
	switch level {
	case evidenceNone:
		sb.WriteString("수집된 근거: 없음. 검색과 스크래핑에서 근거를 찾지 못했습니다. 일반적인 구매 기준만 안내하고, 구체적인 상품이나 가격은 제시하지 마세요.\n\n")
	case evidenceSnippets:
		sb.WriteString("상품 페이지를 읽지 못해 검색 결과 요약만 있습니다. 확인되지 않은 내용은 추정임을 밝히세요.\n\n")
		sb.WriteString(evidence + "\n")
	default:
		sb.WriteString(evidence + "\n")
	}
	if g, ok := verbosityGuide[verbosity]; ok {
		sb.WriteString(g + "\n\n")
	}
	sb.WriteString("사용자 질문: " + state.UserQuery())
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
