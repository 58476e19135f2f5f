package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/engagement-cli/internal/dom"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/resilience"
)

var refTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

const youtubeHTML = `<html><head>
<title>Big Video - YouTube</title>
<meta property="og:title" content="Big Video">
<meta itemprop="uploadDate" content="2009-10-24T23:57:33-07:00">
</head><body>
<div id="movie_player"></div>
<h1 class="ytd-watch-metadata"><yt-formatted-string>Big Video</yt-formatted-string></h1>
<div id="owner"><div id="channel-name"><a href="/@one">Channel One</a></div></div>
<div class="metadata"><span>1,234,567 views</span></div>
<button aria-label="like this video along with 32,000 other people"><span>32K</span></button>
<div id="count"><span class="count-text">1,024 Comments</span></div>
</body></html>`

const shortsHTML = `<html><body>
<ytd-reel-player-header-renderer><span class="view-count">1.2M views</span></ytd-reel-player-header-renderer>
<span class="yt-core-attributed-string">Subscribe</span>
<span class="yt-core-attributed-string">45K</span>
<span class="yt-core-attributed-string">1.2K</span>
<span class="published-time-text">3 weeks ago</span>
</body></html>`

const tiktokHTML = `<html><body>
<div data-e2e="video-player"></div>
<h1 data-e2e="video-desc">Dance #fyp</h1>
<h3 data-e2e="video-author-uniqueid">@dancer</h3>
<strong data-e2e="like-count">1.5M</strong>
<strong data-e2e="share-count">2,048</strong>
<strong data-e2e="comment-count">12.3K</strong>
<span data-e2e="video-date">2 days ago</span>
<script id="state">{"stats":{"playCount":4500000,"diggCount":1500000}}</script>
</body></html>`

const facebookHTML = `<html><body><div role="main">
<div data-testid="post_message">Long post text</div>
<h3><a role="link" href="/page">Page Name</a></h3>
<span>25 views</span>
<abbr data-utime="1705312800">Jan 15</abbr>
<script>{"reaction_count":{"count":321},"share_count":{"count":12},"comment_count":{"total_count":45}}</script>
</div></body></html>`

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	table, err := DefaultTable()
	require.NoError(t, err)
	opts = append([]Option{
		WithClock(func() time.Time { return refTime }),
		WithElementWait(time.Millisecond),
		WithPageLoadRetry(resilience.FixedBackoff(3, time.Millisecond)),
	}, opts...)
	return New(table, opts...)
}

func session(t *testing.T, html string) *dom.StaticSession {
	t.Helper()
	s, err := dom.FromHTML(html)
	require.NoError(t, err)
	return s
}

func TestExtract_YouTubeRegular(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformYouTube, URL: "https://www.youtube.com/watch?v=abc123", Variant: model.VariantRegular}

	rec := e.Extract(context.Background(), ref, session(t, youtubeHTML))

	assert.Equal(t, model.PlatformYouTube, rec.Platform)
	assert.Equal(t, ref.URL, rec.URL)
	assert.Equal(t, "Big Video", rec.Title)
	assert.Equal(t, "Channel One", rec.Author)
	assert.Equal(t, model.Int64(1234567), rec.Views)
	assert.Equal(t, model.Int64(32000), rec.Likes)
	assert.Nil(t, rec.Shares)
	assert.Equal(t, model.Int64(1024), rec.Comments)
	assert.Equal(t, "October 24, 2009", rec.UploadDate)
	assert.Empty(t, rec.Error)
}

func TestExtract_YouTubeShorts(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformYouTube, URL: "https://www.youtube.com/shorts/xyz", Variant: model.VariantShort}

	rec := e.Extract(context.Background(), ref, session(t, shortsHTML))

	assert.Equal(t, model.Int64(1200000), rec.Views)
	assert.Equal(t, model.Int64(45000), rec.Likes)
	assert.Equal(t, model.Int64(1200), rec.Comments)
	assert.Nil(t, rec.Shares)
	assert.Equal(t, "February 23, 2024", rec.UploadDate)
}

func TestExtract_TikTok(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformTikTok, URL: "https://www.tiktok.com/@dancer/video/123", Variant: model.VariantRegular}

	rec := e.Extract(context.Background(), ref, session(t, tiktokHTML))

	assert.Equal(t, "Dance #fyp", rec.Title)
	assert.Equal(t, "dancer", rec.Author)
	assert.Equal(t, model.Int64(4500000), rec.Views)
	assert.Equal(t, model.Int64(1500000), rec.Likes)
	assert.Equal(t, model.Int64(2048), rec.Shares)
	assert.Equal(t, model.Int64(12300), rec.Comments)
	assert.Equal(t, "March 13, 2024", rec.UploadDate)
}

func TestExtract_Facebook(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformFacebook, URL: "https://www.facebook.com/page/posts/1", Variant: model.VariantRegular}

	rec := e.Extract(context.Background(), ref, session(t, facebookHTML))

	assert.Equal(t, "Long post text", rec.Title)
	assert.Equal(t, "Page Name", rec.Author)
	assert.Equal(t, model.Int64(25), rec.Views)
	assert.Equal(t, model.Int64(321), rec.Likes)
	assert.Equal(t, model.Int64(12), rec.Shares)
	assert.Equal(t, model.Int64(45), rec.Comments)
	assert.Equal(t, "January 15, 2024", rec.UploadDate)
}

func TestExtractField_Tiers(t *testing.T) {
	e := newTestExtractor(t)
	ctx := context.Background()
	tiktok := model.ContentReference{Platform: model.PlatformTikTok, Variant: model.VariantRegular}
	facebook := model.ContentReference{Platform: model.PlatformFacebook, Variant: model.VariantRegular}

	r := e.ExtractField(ctx, tiktok, model.FieldLikes, session(t, tiktokHTML))
	assert.True(t, r.Found)
	assert.Equal(t, model.TierSelector, r.Tier)
	assert.Equal(t, "1.5M", r.Text)

	r = e.ExtractField(ctx, tiktok, model.FieldViews, session(t, tiktokHTML))
	assert.True(t, r.Found)
	assert.Equal(t, model.TierText, r.Tier)
	assert.Equal(t, "4500000", r.Text)

	r = e.ExtractField(ctx, facebook, model.FieldUploadDate, session(t, facebookHTML))
	assert.True(t, r.Found)
	assert.Equal(t, model.TierMeta, r.Tier)
	assert.Equal(t, "January 15, 2024", r.Text)
}

func TestExtractField_NotFound(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformTikTok, Variant: model.VariantRegular}

	r := e.ExtractField(context.Background(), ref, model.FieldShares, session(t, `<html><body><p>nothing</p></body></html>`))
	assert.False(t, r.Found)
	assert.Equal(t, model.FieldShares, r.Field)
	assert.Empty(t, r.Text)
}

func TestExtractField_CountTextWithoutDigitsIsRejected(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformTikTok, Variant: model.VariantRegular}
	html := `<html><body><strong data-e2e="like-count">Like</strong><strong class="like-count">88</strong></body></html>`

	r := e.ExtractField(context.Background(), ref, model.FieldLikes, session(t, html))
	assert.True(t, r.Found)
	assert.Equal(t, "88", r.Text)
}

func TestExtractField_AbsentFieldSkipsPage(t *testing.T) {
	e := newTestExtractor(t)
	acc := &fakeAccessor{}
	ref := model.ContentReference{Platform: model.PlatformYouTube, Variant: model.VariantRegular}

	r := e.ExtractField(context.Background(), ref, model.FieldShares, acc)
	assert.False(t, r.Found)
	assert.Zero(t, acc.calls)
}

func TestExtract_FacebookTitleTruncated(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformFacebook, Variant: model.VariantRegular}
	html := `<html><body><div data-testid="post_message">` + strings.Repeat("word ", 60) + `</div></body></html>`

	rec := e.Extract(context.Background(), ref, session(t, html))
	assert.LessOrEqual(t, len([]rune(rec.Title)), 200)
	assert.True(t, strings.HasPrefix(rec.Title, "word word"))
}

func TestExtract_UnparsedDateKeptRaw(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformYouTube, Variant: model.VariantRegular}
	html := `<html><body><div id="info-strings"><yt-formatted-string>Streamed live in 2009</yt-formatted-string></div></body></html>`

	rec := e.Extract(context.Background(), ref, session(t, html))
	assert.Equal(t, "Streamed live in 2009", rec.UploadDate)
}

func TestExtract_JSONLDUploadDate(t *testing.T) {
	e := newTestExtractor(t)
	ref := model.ContentReference{Platform: model.PlatformYouTube, Variant: model.VariantRegular}
	html := `<html><head><script type="application/ld+json">
{"@type":"VideoObject","name":"LD Video","author":{"name":"LD Author"},"uploadDate":"2023-07-04"}
</script></head><body></body></html>`

	rec := e.Extract(context.Background(), ref, session(t, html))
	assert.Equal(t, "LD Video", rec.Title)
	assert.Equal(t, "LD Author", rec.Author)
	assert.Equal(t, "July 04, 2023", rec.UploadDate)
}

func TestLoad_RetriesUntilReady(t *testing.T) {
	e := newTestExtractor(t)
	acc := &fakeAccessor{readyAfter: 3}
	ref := model.ContentReference{Platform: model.PlatformTikTok, URL: "https://www.tiktok.com/@a/video/1", Variant: model.VariantRegular}

	require.NoError(t, e.Load(context.Background(), ref, acc))
	assert.Equal(t, 3, acc.navigations)
}

func TestLoad_ExhaustedRetriesIsPageLoadTimeout(t *testing.T) {
	e := newTestExtractor(t)
	acc := &fakeAccessor{readyAfter: 100}
	ref := model.ContentReference{Platform: model.PlatformTikTok, URL: "https://www.tiktok.com/@a/video/1", Variant: model.VariantRegular}

	err := e.Load(context.Background(), ref, acc)
	require.Error(t, err)
	assert.Equal(t, model.KindPageLoadTimeout, model.KindOf(err))
	assert.Equal(t, 3, acc.navigations)
}

func TestLoad_OptionalReadinessDoesNotRetry(t *testing.T) {
	e := newTestExtractor(t)
	acc := &fakeAccessor{readyAfter: 100}
	ref := model.ContentReference{Platform: model.PlatformFacebook, URL: "https://www.facebook.com/x/posts/1", Variant: model.VariantRegular}

	require.NoError(t, e.Load(context.Background(), ref, acc))
	assert.Equal(t, 1, acc.navigations)
}

// fakeAccessor reports readiness once it has been navigated readyAfter
// times and finds nothing else.
type fakeAccessor struct {
	navigations int
	readyAfter  int
	calls       int
}

func (f *fakeAccessor) Navigate(context.Context, string) error {
	f.calls++
	f.navigations++
	return nil
}

func (f *fakeAccessor) WaitFor(context.Context, string, time.Duration) bool {
	f.calls++
	return f.navigations >= f.readyAfter
}

func (f *fakeAccessor) Text(context.Context, string) (string, bool) {
	f.calls++
	return "", false
}

func (f *fakeAccessor) Texts(context.Context, string) []string {
	f.calls++
	return nil
}

func (f *fakeAccessor) Attribute(context.Context, string, string) (string, bool) {
	f.calls++
	return "", false
}

func (f *fakeAccessor) PageSource(context.Context) (string, error) {
	f.calls++
	return "", nil
}

func (f *fakeAccessor) Scroll(context.Context) error {
	f.calls++
	return nil
}
