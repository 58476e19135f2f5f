package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/engagement-cli/internal/model"
)

func TestDefaultTable(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	for _, p := range model.Platforms {
		layout, ok := table.Layout(p, model.VariantRegular)
		require.True(t, ok, p)
		for _, f := range model.Fields {
			assert.NotNil(t, layout.Fields[f], "%s/%s", p, f)
		}
	}

	yt, ok := table.Layout(model.PlatformYouTube, model.VariantRegular)
	require.True(t, ok)
	assert.True(t, yt.Fields[model.FieldShares].Absent)
	assert.True(t, yt.Ready[0].Required)

	fb, ok := table.Layout(model.PlatformFacebook, model.VariantRegular)
	require.True(t, ok)
	assert.Equal(t, 200, fb.Fields[model.FieldTitle].MaxLength)
	assert.Equal(t, "content", fb.Fields[model.FieldUploadDate].Meta[1].Attr)
}

func TestTable_LayoutFallsBackToRegular(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	short, ok := table.Layout(model.PlatformTikTok, model.VariantShort)
	require.True(t, ok)
	regular, _ := table.Layout(model.PlatformTikTok, model.VariantRegular)
	assert.Same(t, regular, short)

	_, ok = table.Layout(model.Platform("vimeo"), model.VariantRegular)
	assert.False(t, ok)
}

func TestTable_DatePatternsAppended(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	tt, _ := table.Layout(model.PlatformTikTok, model.VariantRegular)
	text := tt.Fields[model.FieldUploadDate].Text
	require.Greater(t, len(text), len(table.DatePatterns))
	assert.Equal(t, table.DatePatterns[len(table.DatePatterns)-1].Pattern, text[len(text)-1].Pattern)
}

func TestLoadTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "platforms: ["},
		{"missing platform", "platforms: {}"},
		{"bad regex", tableWith(`selectors: [{css: "a", match: "("}]`)},
		{"text without group", tableWith(`text: [{pattern: "abc"}]`)},
		{"meta with both", tableWith(`meta: [{css: "meta", jsonld: "name"}]`)},
		{"no strategies", tableWith(`{}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTable([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

// tableWith builds a table where every field uses the given YouTube title
// strategy block and every other field a valid selector.
func tableWith(title string) string {
	layout := func(titleBlock string) string {
		return `
      regular:
        fields:
          title: ` + titleBlock + `
          author: {selectors: [{css: "a"}]}
          views: {selectors: [{css: "a"}]}
          likes: {selectors: [{css: "a"}]}
          shares: {absent: true}
          comments: {selectors: [{css: "a"}]}
          upload_date: {selectors: [{css: "a"}]}`
	}
	valid := `{selectors: [{css: "a"}]}`
	if title[0] != '{' {
		title = "{" + title + "}"
	}
	return "platforms:\n    youtube:" + layout(title) +
		"\n    tiktok:" + layout(valid) +
		"\n    facebook:" + layout(valid) + "\n"
}

func TestLoadTable_Minimal(t *testing.T) {
	table, err := LoadTable([]byte(tableWith(`{selectors: [{css: "h1"}]}`)))
	require.NoError(t, err)
	l, ok := table.Layout(model.PlatformYouTube, model.VariantRegular)
	require.True(t, ok)
	assert.Equal(t, "h1", l.Fields[model.FieldTitle].Selectors[0].CSS)
}
