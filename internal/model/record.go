package model

import "errors"

// Field names one logical piece of metadata extracted from a page.
type Field string

const (
	FieldTitle      Field = "title"
	FieldAuthor     Field = "author"
	FieldViews      Field = "views"
	FieldLikes      Field = "likes"
	FieldShares     Field = "shares"
	FieldComments   Field = "comments"
	FieldUploadDate Field = "upload_date"
)

// Fields lists every extractable field in extraction order.
var Fields = []Field{FieldTitle, FieldAuthor, FieldViews, FieldLikes, FieldShares, FieldComments, FieldUploadDate}

// CountFields lists the four engagement counters.
var CountFields = []Field{FieldViews, FieldLikes, FieldShares, FieldComments}

// IsCount reports whether f holds an engagement counter.
func (f Field) IsCount() bool {
	switch f {
	case FieldViews, FieldLikes, FieldShares, FieldComments:
		return true
	}
	return false
}

// SourceTier identifies which family of strategies produced a reading.
type SourceTier string

const (
	TierSelector SourceTier = "selector"
	TierMeta     SourceTier = "meta"
	TierText     SourceTier = "text"
)

// RawFieldReading is the outcome of running the strategy chain for one field.
// It is consumed immediately by a normalizer.
type RawFieldReading struct {
	Field    Field      `json:"field"`
	Tier     SourceTier `json:"tier,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
	Text     string     `json:"text,omitempty"`
	Found    bool       `json:"found"`
}

// MetadataRecord is the typed result of one extraction run. Count fields are
// nil when absent and never negative. UploadDate is either canonical
// ("January 02, 2006") or the trimmed raw text when it could not be parsed.
type MetadataRecord struct {
	Platform   Platform  `json:"platform"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Author     string    `json:"author,omitempty"`
	Views      *int64    `json:"views"`
	Likes      *int64    `json:"likes"`
	Shares     *int64    `json:"shares"`
	Comments   *int64    `json:"comments"`
	UploadDate string    `json:"upload_date,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
}

// Count returns the value of a count field, or nil.
func (r *MetadataRecord) Count(f Field) *int64 {
	switch f {
	case FieldViews:
		return r.Views
	case FieldLikes:
		return r.Likes
	case FieldShares:
		return r.Shares
	case FieldComments:
		return r.Comments
	}
	return nil
}

// SetCount assigns a count field. Negative values are stored as absent.
func (r *MetadataRecord) SetCount(f Field, v *int64) {
	if v != nil && *v < 0 {
		v = nil
	}
	switch f {
	case FieldViews:
		r.Views = v
	case FieldLikes:
		r.Likes = v
	case FieldShares:
		r.Shares = v
	case FieldComments:
		r.Comments = v
	}
}

// SetError records a request-level failure on the record. Partial fields
// already filled are kept.
func (r *MetadataRecord) SetError(err error) {
	if err == nil {
		return
	}
	var me *Error
	if errors.As(err, &me) {
		r.Error = me.Error()
		r.ErrorKind = me.Kind
		return
	}
	r.Error = err.Error()
}

// Failed reports whether the record carries a request-level error.
func (r *MetadataRecord) Failed() bool {
	return r.Error != ""
}

// Clone returns a deep copy that callers may enrich without touching the
// original.
func (r MetadataRecord) Clone() MetadataRecord {
	out := r
	out.Views = cloneInt(r.Views)
	out.Likes = cloneInt(r.Likes)
	out.Shares = cloneInt(r.Shares)
	out.Comments = cloneInt(r.Comments)
	return out
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
