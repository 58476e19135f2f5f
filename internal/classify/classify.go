// Package classify identifies the platform and content id of a social-media URL.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/engagement-cli/internal/model"
)

type pattern struct {
	re *regexp.Regexp
	// canonical is a regexp.Expand template over re's named groups. Empty
	// keeps the input URL without its query.
	canonical string
}

type platformPatterns struct {
	platform model.Platform
	patterns []pattern
}

// patterns are evaluated in order; the first match across all platforms wins.
var patterns = []platformPatterns{
	{
		platform: model.PlatformYouTube,
		patterns: []pattern{
			{re: regexp.MustCompile(`(?i)(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)(?P<id>[\w-]+)`), canonical: "https://www.youtube.com/watch?v=${id}"},
			{re: regexp.MustCompile(`(?i)youtube\.com/.*[?&]v=(?P<id>[\w-]+)`), canonical: "https://www.youtube.com/watch?v=${id}"},
		},
	},
	{
		platform: model.PlatformTikTok,
		patterns: []pattern{
			{re: regexp.MustCompile(`(?i)tiktok\.com/@(?P<user>[\w.-]+)/video/(?P<id>\d+)`), canonical: "https://www.tiktok.com/@${user}/video/${id}"},
			{re: regexp.MustCompile(`(?i)vm\.tiktok\.com/(?P<id>[\w-]+)`)},
			{re: regexp.MustCompile(`(?i)tiktok\.com/t/(?P<id>[\w-]+)`)},
		},
	},
	{
		platform: model.PlatformFacebook,
		patterns: []pattern{
			{re: regexp.MustCompile(`(?i)facebook\.com/.*/posts/(?P<id>\d+)`)},
			{re: regexp.MustCompile(`(?i)facebook\.com/.*/videos/(?P<id>\d+)`), canonical: "https://www.facebook.com/watch/?v=${id}"},
			{re: regexp.MustCompile(`(?i)fb\.watch/(?P<id>[\w-]+)`)},
			{re: regexp.MustCompile(`(?i)facebook\.com/watch/?\?v=(?P<id>\d+)`), canonical: "https://www.facebook.com/watch/?v=${id}"},
			{re: regexp.MustCompile(`(?i)facebook\.com/share/v/(?P<id>[\w-]+)`)},
			{re: regexp.MustCompile(`(?i)facebook\.com/reel/(?P<id>\d+)`)},
		},
	},
}

// Classify validates rawURL and matches it against the platform patterns.
// It returns a *model.Error of kind InvalidUrlError for a URL without a
// scheme and host, and UnsupportedPlatformError when no pattern matches.
func Classify(rawURL string) (model.ContentReference, error) {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || strings.ContainsAny(trimmed, " \t\n") {
		return model.ContentReference{}, model.NewError(model.KindInvalidURL, "invalid url %q", rawURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.ContentReference{}, model.NewError(model.KindInvalidURL, "invalid url %q", rawURL)
	}

	for _, pp := range patterns {
		for _, p := range pp.patterns {
			m := p.re.FindStringSubmatchIndex(trimmed)
			if m == nil {
				continue
			}
			id := string(p.re.ExpandString(nil, "${id}", trimmed, m))
			ref := model.ContentReference{
				Platform:     pp.platform,
				URL:          trimmed,
				ContentID:    id,
				CanonicalURL: stripQuery(u),
				Variant:      model.VariantRegular,
			}
			if p.canonical != "" {
				ref.CanonicalURL = string(p.re.ExpandString(nil, p.canonical, trimmed, m))
			}
			if pp.platform == model.PlatformYouTube && strings.Contains(strings.ToLower(u.Path), "/shorts/") {
				ref.Variant = model.VariantShort
			}
			return ref, nil
		}
	}

	return model.ContentReference{}, model.NewError(model.KindUnsupportedPlatform, "no platform matches %q", rawURL)
}

// Supported reports whether rawURL classifies without error.
func Supported(rawURL string) bool {
	_, err := Classify(rawURL)
	return err == nil
}

func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
