package vision

import (
	"fmt"
	"strings"

	"github.com/sells-group/engagement-cli/internal/model"
)

const basePrompt = `Analyze this screenshot of a video page and read the following engagement counters as accurately as possible:
- views (view count)
- likes (like or reaction count)
- comments (comment count)
- shares (share count)

For every counter give a confidence from 0 to 100. Convert abbreviated
numbers (K, M, B, rb, jt) to full integers.

PLATFORM: %s

Respond with JSON only, in exactly this shape:
{
  "views":    {"value": <integer or null>, "confidence": <0-100>, "location": "<where on the page>", "format_detected": "<text as shown>"},
  "likes":    {"value": <integer or null>, "confidence": <0-100>, "location": "<where on the page>", "format_detected": "<text as shown>"},
  "comments": {"value": <integer or null>, "confidence": <0-100>, "location": "<where on the page>", "format_detected": "<text as shown>"},
  "shares":   {"value": <integer or null>, "confidence": <0-100>, "location": "<where on the page>", "format_detected": "<text as shown>"},
  "platform_confirmed": "<platform you see>",
  "overall_confidence": <0-100>,
  "notes": "<anything else>"
}

Rules:
- Only report numbers that are clearly visible.
- Use a low confidence when unsure.
- Set value to null for a counter you cannot find.
`

var platformHints = map[model.Platform]string{
	model.PlatformYouTube: `
YouTube layout:
- Views are usually below the title.
- Likes are on the button row under the player.
- The comment count heads the comments section.
- There is no share counter; set shares to null.
`,
	model.PlatformTikTok: `
TikTok layout:
- Counters sit in a column to the right of the video.
- The heart icon is likes, the speech bubble is comments, the arrow is shares.
- Views are often not shown on the video page.
`,
	model.PlatformFacebook: `
Facebook layout:
- Reactions (likes) are below the video.
- Comments and shares are in the interaction bar.
- Views may appear in a corner of the video or next to the reactions.
`,
}

// Prompt builds the analysis prompt for a platform.
func Prompt(p model.Platform) string {
	var b strings.Builder
	fmt.Fprintf(&b, basePrompt, strings.ToUpper(p.DisplayName()))
	b.WriteString(platformHints[p])
	return b.String()
}
