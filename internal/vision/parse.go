package vision

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/normalize"
)

// FallbackConfidence is the confidence given to a counter recovered by the
// regex fallback.
const FallbackConfidence = 0.70

// defaultConfidence applies when the model gives a value without one.
const defaultConfidence = 0.50

// Reading is a parsed vision-model answer.
type Reading struct {
	Observations      []model.MetricObservation
	PlatformConfirmed string
	OverallConfidence *float64
	Notes             string
	// Fallback is set when the answer was not valid JSON and the counters
	// were recovered by pattern matching.
	Fallback bool
}

// Observation returns the observation for f, if any.
func (r Reading) Observation(f model.Field) (model.MetricObservation, bool) {
	for _, o := range r.Observations {
		if o.Metric == f {
			return o, true
		}
	}
	return model.MetricObservation{}, false
}

const (
	numberPattern = `(\d+(?:[.,]\d+)*\s*(?:(?:[KMBkmb]|rb|jt)\b)?)`
	// labelSep also spans a broken JSON fragment such as `views": {"value": `.
	labelSep = `[\s:"{=]*(?:value"?[\s:]*)?`
)

var fallbackPatterns = map[model.Field][]*regexp.Regexp{
	model.FieldViews: {
		regexp.MustCompile(`(?i)\bviews?` + labelSep + numberPattern),
		regexp.MustCompile(`(?i)\bpenayangan` + labelSep + numberPattern),
		regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:views|x ditonton|penayangan)\b`),
	},
	model.FieldLikes: {
		regexp.MustCompile(`(?i)\blikes?` + labelSep + numberPattern),
		regexp.MustCompile(`(?i)\bsuka` + labelSep + numberPattern),
	},
	model.FieldComments: {
		regexp.MustCompile(`(?i)\bcomments?` + labelSep + numberPattern),
		regexp.MustCompile(`(?i)\bkomentar` + labelSep + numberPattern),
	},
	model.FieldShares: {
		regexp.MustCompile(`(?i)\bshares?` + labelSep + numberPattern),
		regexp.MustCompile(`(?i)\bberbagi` + labelSep + numberPattern),
	},
}

// Parse reads a model answer. JSON is tried first, then the regex
// fallback. It fails only when neither yields a single counter.
func Parse(text string) (Reading, error) {
	if r, ok := parseJSON(text); ok {
		return r, nil
	}
	r := parseFallback(text)
	if len(r.Observations) == 0 {
		return Reading{}, eris.New("vision: no counters found in model response")
	}
	return r, nil
}

// extractJSON slices text from its first '{' to its last '}', dropping
// markdown fences and prose around the object.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

type answer struct {
	PlatformConfirmed string `json:"platform_confirmed"`
	OverallConfidence any    `json:"overall_confidence"`
	Notes             string `json:"notes"`
}

func parseJSON(text string) (Reading, bool) {
	body, ok := extractJSON(text)
	if !ok {
		return Reading{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Reading{}, false
	}

	var r Reading
	var known bool
	for _, f := range model.CountFields {
		raw, ok := fields[string(f)]
		if !ok {
			continue
		}
		known = true
		if obs, ok := parseMetric(f, raw); ok {
			r.Observations = append(r.Observations, obs)
		}
	}
	if !known {
		return Reading{}, false
	}

	var a answer
	if err := json.Unmarshal([]byte(body), &a); err == nil {
		r.PlatformConfirmed = strings.TrimSpace(a.PlatformConfirmed)
		r.Notes = a.Notes
		if c, ok := toPercent(a.OverallConfidence); ok {
			r.OverallConfidence = model.Float64(c)
		}
	}
	return r, true
}

type metricAnswer struct {
	Value      any `json:"value"`
	Confidence any `json:"confidence"`
}

// parseMetric accepts {"value": ..., "confidence": ...} or a bare value.
// It reports false for a null or unreadable value.
func parseMetric(f model.Field, raw json.RawMessage) (model.MetricObservation, bool) {
	var m metricAnswer
	if err := json.Unmarshal(raw, &m); err != nil {
		var bare any
		if err := json.Unmarshal(raw, &bare); err != nil {
			return model.MetricObservation{}, false
		}
		m = metricAnswer{Value: bare}
	}
	v, ok := toCount(m.Value)
	if !ok {
		return model.MetricObservation{}, false
	}
	conf, ok := toPercent(m.Confidence)
	if !ok {
		conf = defaultConfidence
	}
	return model.MetricObservation{Metric: f, Value: model.Int64(v), Confidence: model.Float64(conf)}, true
}

func toCount(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if x < 0 || x >= math.MaxInt64 || math.IsNaN(x) {
			return 0, false
		}
		return int64(math.Floor(x)), true
	case string:
		return normalize.Number(x)
	}
	return 0, false
}

// toPercent converts a 0-100 confidence (number or "85%") to [0,1].
func toPercent(v any) (float64, bool) {
	var p float64
	switch x := v.(type) {
	case float64:
		p = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(x), "%")), 64)
		if err != nil {
			return 0, false
		}
		p = f
	default:
		return 0, false
	}
	if math.IsNaN(p) {
		return 0, false
	}
	return math.Max(0, math.Min(1, p/100)), true
}

func parseFallback(text string) Reading {
	r := Reading{Fallback: true}
	for _, f := range model.CountFields {
		for _, re := range fallbackPatterns[f] {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if v, ok := normalize.Number(m[1]); ok {
				r.Observations = append(r.Observations, model.MetricObservation{
					Metric:     f,
					Value:      model.Int64(v),
					Confidence: model.Float64(FallbackConfidence),
				})
				break
			}
		}
	}
	return r
}
