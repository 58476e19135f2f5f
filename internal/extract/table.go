package extract

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/engagement-cli/internal/model"
)

//go:embed strategies.yaml
var defaultStrategies []byte

// Table holds the strategy rows for every platform and layout variant.
type Table struct {
	DatePatterns []TextStrategy                               `yaml:"date_patterns"`
	Platforms    map[model.Platform]map[model.Variant]*Layout `yaml:"platforms"`
}

// Layout is one page layout: its readiness locators and field strategies.
type Layout struct {
	Ready  []Readiness                      `yaml:"ready"`
	Fields map[model.Field]*FieldStrategies `yaml:"fields"`
}

// Readiness is a locator waited for after navigation. A required locator
// that never appears fails the page load.
type Readiness struct {
	Locator  string `yaml:"locator"`
	Required bool   `yaml:"required"`
}

// FieldStrategies lists the strategies for one field, tier by tier.
type FieldStrategies struct {
	// Absent marks a field the platform has no surface for. No strategy runs.
	Absent      bool               `yaml:"absent"`
	StripPrefix string             `yaml:"strip_prefix"`
	MaxLength   int                `yaml:"max_length"`
	Selectors   []SelectorStrategy `yaml:"selectors"`
	Meta        []MetaStrategy     `yaml:"meta"`
	Text        []TextStrategy     `yaml:"text"`
}

// SelectorStrategy queries elements by CSS locator.
type SelectorStrategy struct {
	CSS    string `yaml:"css"`
	Attr   string `yaml:"attr"`
	Match  string `yaml:"match"`
	Index  int    `yaml:"index"`
	Scroll bool   `yaml:"scroll"`
	Wait   bool   `yaml:"wait"`

	match *regexp.Regexp
}

// MetaStrategy reads a meta tag attribute or a JSON-LD key.
type MetaStrategy struct {
	CSS    string `yaml:"css"`
	Attr   string `yaml:"attr"`
	Epoch  bool   `yaml:"epoch"`
	JSONLD string `yaml:"jsonld"`
}

// TextStrategy scans the page source with a regular expression.
type TextStrategy struct {
	Pattern string `yaml:"pattern"`
	Epoch   bool   `yaml:"epoch"`

	re *regexp.Regexp
}

// DefaultTable parses the embedded strategy table.
func DefaultTable() (*Table, error) {
	return LoadTable(defaultStrategies)
}

// LoadTable parses and validates a strategy table. Every platform needs a
// regular layout with an entry for every field; patterns are compiled once.
func LoadTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "extract: parse strategy table")
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Layout returns the rows for platform and variant, falling back to the
// regular layout.
func (t *Table) Layout(p model.Platform, v model.Variant) (*Layout, bool) {
	variants, ok := t.Platforms[p]
	if !ok {
		return nil, false
	}
	if l, ok := variants[v]; ok {
		return l, true
	}
	l, ok := variants[model.VariantRegular]
	return l, ok
}

func (t *Table) compile() error {
	for i := range t.DatePatterns {
		if err := t.DatePatterns[i].compile(); err != nil {
			return eris.Wrap(err, "extract: date_patterns")
		}
	}

	for _, p := range model.Platforms {
		variants, ok := t.Platforms[p]
		if !ok {
			return eris.Errorf("extract: no strategies for platform %s", p)
		}
		if _, ok := variants[model.VariantRegular]; !ok {
			return eris.Errorf("extract: platform %s has no regular layout", p)
		}
	}

	for p, variants := range t.Platforms {
		if !p.Valid() {
			return eris.Errorf("extract: unknown platform %q", p)
		}
		for v, layout := range variants {
			if layout == nil {
				return eris.Errorf("extract: %s/%s: empty layout", p, v)
			}
			where := fmt.Sprintf("%s/%s", p, v)
			for _, f := range model.Fields {
				fs, ok := layout.Fields[f]
				if !ok || fs == nil {
					return eris.Errorf("extract: %s: missing field %s", where, f)
				}
				if err := fs.compile(); err != nil {
					return eris.Wrapf(err, "extract: %s/%s", where, f)
				}
				if f == model.FieldUploadDate && !fs.Absent {
					fs.Text = append(fs.Text, t.DatePatterns...)
				}
			}
			for _, r := range layout.Ready {
				if strings.TrimSpace(r.Locator) == "" {
					return eris.Errorf("extract: %s: empty readiness locator", where)
				}
			}
		}
	}
	return nil
}

func (fs *FieldStrategies) compile() error {
	if fs.Absent {
		if len(fs.Selectors)+len(fs.Meta)+len(fs.Text) > 0 {
			return eris.New("absent field lists strategies")
		}
		return nil
	}
	if len(fs.Selectors)+len(fs.Meta)+len(fs.Text) == 0 {
		return eris.New("no strategies")
	}
	for i := range fs.Selectors {
		s := &fs.Selectors[i]
		if s.CSS == "" {
			return eris.Errorf("selector %d: empty css", i)
		}
		if s.Index < 0 {
			return eris.Errorf("selector %d: negative index", i)
		}
		if s.Match != "" {
			re, err := regexp.Compile(s.Match)
			if err != nil {
				return eris.Wrapf(err, "selector %d: match", i)
			}
			s.match = re
		}
	}
	for i, m := range fs.Meta {
		if (m.CSS == "") == (m.JSONLD == "") {
			return eris.Errorf("meta %d: exactly one of css or jsonld is required", i)
		}
		if m.CSS != "" && m.Attr == "" {
			fs.Meta[i].Attr = "content"
		}
	}
	for i := range fs.Text {
		if err := fs.Text[i].compile(); err != nil {
			return eris.Wrapf(err, "text %d", i)
		}
	}
	return nil
}

func (ts *TextStrategy) compile() error {
	re, err := regexp.Compile(ts.Pattern)
	if err != nil {
		return eris.Wrap(err, "pattern")
	}
	if re.NumSubexp() < 1 {
		return eris.Errorf("pattern %q has no capture group", ts.Pattern)
	}
	ts.re = re
	return nil
}
