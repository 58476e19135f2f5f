package dom

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockLoginWall  BlockType = "login_wall"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks a fetched page for signs that the real content was
// withheld. resp may be nil for pages obtained from a live browser.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp != nil && (resp.StatusCode == 403 || resp.StatusCode == 503) {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "hcaptcha") ||
		strings.Contains(lower, "captcha-verify") {
		return true, BlockCaptcha
	}

	// Facebook and TikTok serve a bare login form to anonymous traffic.
	if strings.Contains(lower, `id="login_form"`) && !strings.Contains(lower, `role="main"`) {
		return true, BlockLoginWall
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
