package extract

import (
	"context"
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/engagement-cli/internal/dom"
	"github.com/sells-group/engagement-cli/internal/normalize"
)

// maxTextMatches caps how many page-source matches a text strategy inspects.
const maxTextMatches = 20

var jsonLDRe = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

// page memoizes the page source for the duration of one field lookup.
type page struct {
	dom.Accessor
	src    string
	loaded bool
}

func (p *page) source(ctx context.Context) string {
	if !p.loaded {
		p.src, _ = p.PageSource(ctx)
		p.loaded = true
	}
	return p.src
}

// candidates returns the texts a selector strategy yields, in document
// order. Lookup misses produce an empty slice.
func (s *SelectorStrategy) candidates(ctx context.Context, p *page, wait time.Duration) []string {
	if s.Scroll {
		if err := p.Scroll(ctx); err == nil {
			p.loaded = false
		}
	}
	if s.Wait && wait > 0 {
		p.WaitFor(ctx, s.CSS, wait)
	}

	var texts []string
	if s.Attr != "" {
		if v, ok := p.Attribute(ctx, s.CSS, s.Attr); ok {
			texts = []string{v}
		}
	} else {
		texts = p.Texts(ctx, s.CSS)
	}

	if s.match == nil {
		return pick(texts, s.Index)
	}
	var matched []string
	for _, t := range texts {
		m := s.match.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			matched = append(matched, m[1])
		} else {
			matched = append(matched, t)
		}
	}
	return pick(matched, s.Index)
}

func pick(texts []string, index int) []string {
	if index == 0 {
		return texts
	}
	if index < len(texts) {
		return texts[index : index+1]
	}
	return nil
}

// lookup reads a meta attribute or JSON-LD key.
func (m *MetaStrategy) lookup(ctx context.Context, p *page) (string, bool) {
	var v string
	if m.JSONLD != "" {
		v = findJSONLD(p.source(ctx), m.JSONLD)
	} else {
		v, _ = p.Attribute(ctx, m.CSS, m.Attr)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if m.Epoch {
		return normalize.EpochDate(v)
	}
	return v, true
}

// candidates returns the first group of each match in the page source.
func (ts *TextStrategy) candidates(ctx context.Context, p *page) []string {
	src := p.source(ctx)
	if src == "" {
		return nil
	}
	var out []string
	for _, m := range ts.re.FindAllStringSubmatch(src, maxTextMatches) {
		v := m[1]
		if ts.Epoch {
			d, ok := normalize.EpochDate(v)
			if !ok {
				continue
			}
			v = d
		}
		out = append(out, v)
	}
	return out
}

// findJSONLD searches every ld+json block in src for key and returns the
// first scalar value, or the "name" of an object value.
func findJSONLD(src, key string) string {
	for _, m := range jsonLDRe.FindAllStringSubmatch(src, -1) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &doc); err != nil {
			continue
		}
		if v, ok := searchKey(doc, key); ok {
			return v
		}
	}
	return ""
}

func searchKey(node any, key string) (string, bool) {
	switch n := node.(type) {
	case map[string]any:
		if v, ok := n[key]; ok {
			if s, ok := scalar(v); ok {
				return s, true
			}
		}
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if s, ok := searchKey(n[k], key); ok {
				return s, true
			}
		}
	case []any:
		for _, child := range n {
			if s, ok := searchKey(child, key); ok {
				return s, true
			}
		}
	}
	return "", false
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case map[string]any:
		return scalar(x["name"])
	case []any:
		if len(x) > 0 {
			return scalar(x[0])
		}
	}
	return "", false
}
