package model

// Platform identifies the social-media site a content URL belongs to.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformTikTok   Platform = "tiktok"
	PlatformFacebook Platform = "facebook"
)

// Platforms lists every supported platform in classification order.
var Platforms = []Platform{PlatformYouTube, PlatformTikTok, PlatformFacebook}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformYouTube, PlatformTikTok, PlatformFacebook:
		return true
	}
	return false
}

// DisplayName returns the human-readable platform name used in prompts and exports.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTikTok:
		return "TikTok"
	case PlatformFacebook:
		return "Facebook"
	default:
		return string(p)
	}
}

// Variant distinguishes page layouts of the same platform that need
// separate selector lists.
type Variant string

const (
	VariantRegular Variant = "regular"
	VariantShort   Variant = "short"
)

// ContentReference is the result of classifying a URL. It is immutable once
// produced.
type ContentReference struct {
	Platform     Platform `json:"platform"`
	URL          string   `json:"url"`
	ContentID    string   `json:"content_id"`
	CanonicalURL string   `json:"canonical_url"`
	Variant      Variant  `json:"variant"`
}
