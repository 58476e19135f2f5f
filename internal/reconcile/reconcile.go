// Package reconcile combines a scraped metric reading with a vision-model
// reading of the same metric into one confidence-scored value.
package reconcile

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/model"
)

// Discrepancy thresholds.
const (
	CloseMatchRatio    = 0.10
	ModerateMatchRatio = 0.30
)

// Notes attached to reconciled metrics.
const (
	NoteCloseMatch    = "Values match closely, high confidence"
	NoteModerateMatch = "Moderate discrepancy, using higher value"
	NoteHighMismatch  = "High discrepancy, using scraped value"
	NoteScrapedOnly   = "Only scraped value available"
	NoteSecondaryOnly = "Only secondary value available"
	NoteNoValues      = "No values detected"
)

// Confidence level labels.
const (
	LevelHigh    = "high"
	LevelMedium  = "medium"
	LevelLow     = "low"
	LevelVeryLow = "very low"
)

// Metric reconciles one scraped and one secondary observation of the same
// metric. secondaryConfidence is the model's self-reported confidence in
// [0,1]; values outside the range are clamped.
func Metric(field model.Field, scraped, secondary *int64, secondaryConfidence float64) model.ReconciledMetric {
	c := clamp01(secondaryConfidence)
	rm := model.ReconciledMetric{
		Metric:         field,
		ScrapedValue:   copyInt(scraped),
		SecondaryValue: copyInt(secondary),
	}

	// A scraped zero next to a positive secondary reading is treated as a
	// missing scrape.
	scrapedZero := scraped != nil && secondary != nil && *scraped == 0 && *secondary != 0

	switch {
	case scraped != nil && secondary != nil && !scrapedZero:
		s, v := *scraped, *secondary
		ratio := discrepancy(s, v)
		rm.DiscrepancyRatio = model.Float64(ratio)
		switch {
		case ratio < CloseMatchRatio:
			rm.IsVerified = true
			rm.ConfidenceScore = math.Min(0.95, 0.7+c*0.3)
			rm.FinalValue = model.Int64(s)
			if c > 0.8 {
				rm.FinalValue = model.Int64(v)
			}
			rm.Notes = NoteCloseMatch
		case ratio < ModerateMatchRatio:
			rm.IsVerified = true
			rm.ConfidenceScore = 0.6 + c*0.2
			rm.FinalValue = model.Int64(max(s, v))
			rm.Notes = NoteModerateMatch
		default:
			rm.ConfidenceScore = 0.3
			rm.FinalValue = model.Int64(s)
			rm.Notes = NoteHighMismatch
		}
	case scraped != nil && secondary == nil:
		rm.ConfidenceScore = 0.5
		rm.FinalValue = model.Int64(*scraped)
		rm.Notes = NoteScrapedOnly
	case secondary != nil:
		rm.ConfidenceScore = c * 0.7
		rm.FinalValue = model.Int64(*secondary)
		rm.Notes = NoteSecondaryOnly
	default:
		rm.Notes = NoteNoValues
	}

	zap.L().Debug("reconcile: metric",
		zap.String("metric", string(field)),
		zap.Bool("verified", rm.IsVerified),
		zap.Float64("confidence", rm.ConfidenceScore),
	)
	return rm
}

// discrepancy returns |s-v|/s. Two zero readings agree exactly; callers never
// pass s == 0 with v != 0.
func discrepancy(s, v int64) float64 {
	if s == 0 {
		return 0
	}
	return math.Abs(float64(s)-float64(v)) / float64(s)
}

// Record reconciles every count metric of rec against the secondary
// observations. The result has one entry per count field, in
// model.CountFields order; rec is not modified.
func Record(rec *model.MetadataRecord, secondary []model.MetricObservation) []model.ReconciledMetric {
	byField := make(map[model.Field]model.MetricObservation, len(secondary))
	for _, o := range secondary {
		byField[o.Metric] = o
	}

	out := make([]model.ReconciledMetric, 0, len(model.CountFields))
	for _, f := range model.CountFields {
		var scraped *int64
		if rec != nil {
			scraped = rec.Count(f)
		}
		obs, ok := byField[f]
		var value *int64
		var conf float64
		if ok {
			value = obs.Value
			if obs.Confidence != nil {
				conf = *obs.Confidence
			}
		}
		out = append(out, Metric(f, scraped, value, conf))
	}
	return out
}

// Overall is the arithmetic mean of the confidence scores, or 0 for none.
func Overall(metrics []model.ReconciledMetric) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, m := range metrics {
		sum += m.ConfidenceScore
	}
	return sum / float64(len(metrics))
}

// Level maps an overall confidence to its label.
func Level(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return LevelHigh
	case confidence >= 0.6:
		return LevelMedium
	case confidence >= 0.4:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// ScrapedOnly reconciles rec with no secondary reading, which is what a
// failed or skipped vision analysis degrades to.
func ScrapedOnly(rec *model.MetadataRecord) []model.ReconciledMetric {
	return Record(rec, nil)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return model.Int64(*v)
}
