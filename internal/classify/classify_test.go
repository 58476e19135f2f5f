package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/engagement-cli/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		url       string
		platform  model.Platform
		id        string
		canonical string
		variant   model.Variant
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=abc123", model.PlatformYouTube, "abc123", "https://www.youtube.com/watch?v=abc123", model.VariantRegular},
		{"youtube mixed case id", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", model.PlatformYouTube, "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", model.VariantRegular},
		{"youtube short link", "https://youtu.be/Xy-9_z", model.PlatformYouTube, "Xy-9_z", "https://www.youtube.com/watch?v=Xy-9_z", model.VariantRegular},
		{"youtube shorts", "https://www.youtube.com/shorts/AbCdEf", model.PlatformYouTube, "AbCdEf", "https://www.youtube.com/watch?v=AbCdEf", model.VariantShort},
		{"youtube embedded v param", "https://m.youtube.com/embed?feature=share&v=q1w2e3", model.PlatformYouTube, "q1w2e3", "https://www.youtube.com/watch?v=q1w2e3", model.VariantRegular},
		{"tiktok video", "https://www.tiktok.com/@some.user/video/7234567890123456789?lang=en", model.PlatformTikTok, "7234567890123456789", "https://www.tiktok.com/@some.user/video/7234567890123456789", model.VariantRegular},
		{"tiktok vm short link", "https://vm.tiktok.com/ZMabc123/", model.PlatformTikTok, "ZMabc123", "https://vm.tiktok.com/ZMabc123/", model.VariantRegular},
		{"tiktok t short link", "https://www.tiktok.com/t/ZT8abc/", model.PlatformTikTok, "ZT8abc", "https://www.tiktok.com/t/ZT8abc/", model.VariantRegular},
		{"facebook post", "https://www.facebook.com/somepage/posts/1234567890", model.PlatformFacebook, "1234567890", "https://www.facebook.com/somepage/posts/1234567890", model.VariantRegular},
		{"facebook video", "https://www.facebook.com/somepage/videos/987654321/", model.PlatformFacebook, "987654321", "https://www.facebook.com/watch/?v=987654321", model.VariantRegular},
		{"facebook watch", "https://www.facebook.com/watch/?v=555", model.PlatformFacebook, "555", "https://www.facebook.com/watch/?v=555", model.VariantRegular},
		{"fb.watch", "https://fb.watch/aBc-12/", model.PlatformFacebook, "aBc-12", "https://fb.watch/aBc-12/", model.VariantRegular},
		{"facebook share", "https://www.facebook.com/share/v/1AbCd/", model.PlatformFacebook, "1AbCd", "https://www.facebook.com/share/v/1AbCd/", model.VariantRegular},
		{"facebook reel", "https://www.facebook.com/reel/777", model.PlatformFacebook, "777", "https://www.facebook.com/reel/777", model.VariantRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := Classify(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.platform, ref.Platform)
			assert.Equal(t, tt.id, ref.ContentID)
			assert.Equal(t, tt.canonical, ref.CanonicalURL)
			assert.Equal(t, tt.variant, ref.Variant)
			assert.Equal(t, tt.url, ref.URL)
		})
	}
}

func TestClassify_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"not a url", "", "www.youtube.com/watch?v=abc", "ftp://youtube.com/watch?v=abc", "https://"} {
		_, err := Classify(raw)
		require.Error(t, err, raw)
		assert.Equal(t, model.KindInvalidURL, model.KindOf(err), raw)
	}
}

func TestClassify_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"https://example.com/x", "https://www.instagram.com/p/abc/", "https://www.youtube.com/channel/UC123"} {
		_, err := Classify(raw)
		require.Error(t, err, raw)
		assert.Equal(t, model.KindUnsupportedPlatform, model.KindOf(err), raw)
	}
}

func TestClassify_FirstPlatformWins(t *testing.T) {
	t.Parallel()

	// A facebook share wrapper around a youtube link matches youtube first.
	ref, err := Classify("https://www.facebook.com/l.php?u=https://youtu.be/zzz")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformYouTube, ref.Platform)
	assert.Equal(t, "zzz", ref.ContentID)
}

func TestSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, Supported("https://youtu.be/abc"))
	assert.False(t, Supported("https://example.com"))
}
