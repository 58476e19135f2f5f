package model

import "time"

// MetricObservation is one reading of a count metric. Confidence is in
// [0,1]; it is nil for scraped observations.
type MetricObservation struct {
	Metric     Field    `json:"metric"`
	Value      *int64   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ReconciledMetric combines a scraped and a secondary observation of one
// metric.
type ReconciledMetric struct {
	Metric           Field    `json:"metric"`
	ScrapedValue     *int64   `json:"scraped_value"`
	SecondaryValue   *int64   `json:"secondary_value"`
	DiscrepancyRatio *float64 `json:"discrepancy_ratio"`
	ConfidenceScore  float64  `json:"confidence_score"`
	IsVerified       bool     `json:"is_verified"`
	FinalValue       *int64   `json:"final_value"`
	Notes            string   `json:"notes"`
}

// Analysis is the read-only annotation produced by reconciling a record
// with a vision-model reading of a screenshot of the same page.
type Analysis struct {
	ScreenshotTaken    bool               `json:"screenshot_taken"`
	AnalysisSuccessful bool               `json:"analysis_successful"`
	Metrics            []ReconciledMetric `json:"metrics"`
	OverallConfidence  float64            `json:"overall_confidence"`
	ConfidenceLevel    string             `json:"confidence_level"`
	PlatformDetected   Platform           `json:"platform_detected"`
	Timestamp          time.Time          `json:"timestamp"`
	ErrorMessage       string             `json:"error_message,omitempty"`
}

// Metric returns the reconciled metric for f, if present.
func (a *Analysis) Metric(f Field) (ReconciledMetric, bool) {
	for _, m := range a.Metrics {
		if m.Metric == f {
			return m, true
		}
	}
	return ReconciledMetric{}, false
}
