package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes why a page was judged to be a block page instead of
// product content.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockAkamai     BlockType = "akamai"
	BlockCaptcha    BlockType = "captcha"
	BlockLoginWall  BlockType = "login_wall"
	BlockJSShell    BlockType = "js_shell"
)

// shellMaxBytes bounds the body size of pages checked for JS-shell and
// login-wall markers; real product pages are far larger.
const shellMaxBytes = 4000

type bodyMarker struct {
	block BlockType
	any   []string // any one marker matches
	all   []string // every marker must match
}

// Order matters: the first matching marker wins.
var bodyMarkers = []bodyMarker{
	{block: BlockCloudflare, any: []string{"checking your browser", "cf-browser-verification", "cf-challenge"}},
	{block: BlockCloudflare, all: []string{"cloudflare", "challenge"}},
	{block: BlockAkamai, all: []string{"access denied", "reference #"}},
	{block: BlockCaptcha, any: []string{"captcha", "자동입력 방지", "자동입력방지", "보안문자", "로봇이 아닙니다"}},
}

var loginWallMarkers = []string{"로그인이 필요", "로그인 후 이용", "please log in", "sign in to continue"}

// DetectBlock checks a response for anti-bot pages and login walls. body
// must already be decoded to UTF-8.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if bt := headerBlock(resp); bt != BlockNone {
		return true, bt
	}

	lower := strings.ToLower(string(body))
	for _, m := range bodyMarkers {
		if m.matches(lower) {
			return true, m.block
		}
	}

	if redirectedToLogin(resp) {
		return true, BlockLoginWall
	}

	if len(body) < shellMaxBytes {
		if containsAny(lower, loginWallMarkers) {
			return true, BlockLoginWall
		}
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

func headerBlock(resp *http.Response) BlockType {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return BlockNone
	}
	server := strings.ToLower(resp.Header.Get("Server"))
	switch {
	case resp.Header.Get("cf-ray") != "", resp.Header.Get("cf-cache-status") != "", server == "cloudflare":
		return BlockCloudflare
	case strings.HasPrefix(server, "akamaighost"), resp.Header.Get("x-akamai-transformed") != "":
		return BlockAkamai
	}
	return BlockNone
}

// redirectedToLogin reports whether the client followed a redirect that
// ended on a login page.
func redirectedToLogin(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil || resp.Request.Response == nil {
		return false
	}
	p := strings.ToLower(resp.Request.URL.Path)
	return strings.Contains(p, "/login") || strings.Contains(p, "/signin") || strings.Contains(p, "/member/login")
}

func (m bodyMarker) matches(lower string) bool {
	if len(m.any) > 0 && containsAny(lower, m.any) {
		return true
	}
	if len(m.all) == 0 {
		return false
	}
	for _, s := range m.all {
		if !strings.Contains(lower, s) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
