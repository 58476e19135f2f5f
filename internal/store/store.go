// Package store persists finished extraction records.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = eris.New("store: record not found")

// DefaultListLimit caps ListRecords when the filter sets no limit.
const DefaultListLimit = 100

// StoredRecord is a persisted copy of a MetadataRecord plus the caller's
// annotations. The embedded record is never the pipeline's own value.
type StoredRecord struct {
	ID          string               `json:"id"`
	Record      model.MetadataRecord `json:"record"`
	CreatorName string               `json:"creator_name,omitempty"`
	AccountName string               `json:"account_name,omitempty"`
	CapturedAt  time.Time            `json:"captured_at"`
	Analysis    *model.Analysis      `json:"analysis,omitempty"`
}

// NewRecord copies rec (and analysis, if any) into a StoredRecord with a
// fresh id captured at now.
func NewRecord(rec model.MetadataRecord, analysis *model.Analysis, now time.Time) *StoredRecord {
	sr := &StoredRecord{
		ID:         uuid.New().String(),
		Record:     rec.Clone(),
		CapturedAt: now.UTC(),
	}
	if analysis != nil {
		a := *analysis
		a.Metrics = append([]model.ReconciledMetric(nil), analysis.Metrics...)
		sr.Analysis = &a
	}
	return sr
}

// prepare fills a missing id and capture time.
func (r *StoredRecord) prepare() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CapturedAt.IsZero() {
		r.CapturedAt = time.Now()
	}
	r.CapturedAt = r.CapturedAt.UTC()
}

// RecordFilter selects stored records. From is inclusive and To exclusive;
// zero values leave that bound open.
type RecordFilter struct {
	From     time.Time      `json:"from,omitempty"`
	To       time.Time      `json:"to,omitempty"`
	Platform model.Platform `json:"platform,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

func (f RecordFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines record persistence.
type Store interface {
	// SaveRecord inserts rec, assigning an id and capture time if unset.
	SaveRecord(ctx context.Context, rec *StoredRecord) error
	// SaveRecords inserts a batch of records.
	SaveRecords(ctx context.Context, recs []*StoredRecord) error
	GetRecord(ctx context.Context, id string) (*StoredRecord, error)
	// ListRecords returns matching records, newest capture first.
	ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error)
	CountRecords(ctx context.Context, filter RecordFilter) (int, error)
	DeleteRecord(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// whereClause renders the filter's conditions. ph formats the n-th
// placeholder and ts converts a bound time to the driver's column value.
func whereClause(f RecordFilter, ph func(n int) string, ts func(time.Time) any) (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		clause += ` AND ` + cond + ` ` + ph(len(args))
	}
	if !f.From.IsZero() {
		add(`captured_at >=`, ts(f.From))
	}
	if !f.To.IsZero() {
		add(`captured_at <`, ts(f.To))
	}
	if f.Platform != "" {
		add(`platform =`, string(f.Platform))
	}
	return clause, args
}

type encoded struct {
	record   []byte
	analysis []byte // nil when the record has no analysis
}

func encode(rec *StoredRecord) (encoded, error) {
	var enc encoded
	var err error
	if enc.record, err = json.Marshal(rec.Record); err != nil {
		return enc, eris.Wrap(err, "store: marshal record")
	}
	if rec.Analysis != nil {
		if enc.analysis, err = json.Marshal(rec.Analysis); err != nil {
			return enc, eris.Wrap(err, "store: marshal analysis")
		}
	}
	return enc, nil
}

func decode(rec *StoredRecord, recordJSON, analysisJSON []byte) error {
	if err := json.Unmarshal(recordJSON, &rec.Record); err != nil {
		return eris.Wrapf(err, "store: unmarshal record %s", rec.ID)
	}
	if len(analysisJSON) > 0 {
		rec.Analysis = &model.Analysis{}
		if err := json.Unmarshal(analysisJSON, rec.Analysis); err != nil {
			return eris.Wrapf(err, "store: unmarshal analysis %s", rec.ID)
		}
	}
	return nil
}
