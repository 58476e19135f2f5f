package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteTime is a fixed-width UTC layout so captured_at sorts and compares
// lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	platform     TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	record       TEXT NOT NULL,
	creator_name TEXT NOT NULL DEFAULT '',
	account_name TEXT NOT NULL DEFAULT '',
	error_kind   TEXT NOT NULL DEFAULT '',
	analysis     TEXT,
	captured_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_captured_at ON records(captured_at);
CREATE INDEX IF NOT EXISTS idx_records_platform ON records(platform);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsert = `INSERT INTO records
	(id, platform, url, record, creator_name, account_name, error_kind, analysis, captured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, ex execer, rec *StoredRecord) error {
	rec.prepare()
	enc, err := encode(rec)
	if err != nil {
		return err
	}
	var analysis any
	if enc.analysis != nil {
		analysis = string(enc.analysis)
	}
	_, err = ex.ExecContext(ctx, sqliteInsert,
		rec.ID, string(rec.Record.Platform), rec.Record.URL, string(enc.record),
		rec.CreatorName, rec.AccountName, string(rec.Record.ErrorKind), analysis,
		rec.CapturedAt.Format(sqliteTime),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
	}
	return nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *StoredRecord) error {
	return s.insert(ctx, s.db, rec)
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, recs []*StoredRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		if err := s.insert(ctx, tx, rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit records")
}

const sqliteSelect = `SELECT id, record, creator_name, account_name, analysis, captured_at FROM records`

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*StoredRecord, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return rec, nil
}

func sqlitePlaceholder(int) string { return "?" }

func sqliteTimeArg(t time.Time) any { return t.UTC().Format(sqliteTime) }

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error) {
	where, args := whereClause(filter, sqlitePlaceholder, sqliteTimeArg)
	query := sqliteSelect + where + ` ORDER BY captured_at DESC, id LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) CountRecords(ctx context.Context, filter RecordFilter) (int, error) {
	where, args := whereClause(filter, sqlitePlaceholder, sqliteTimeArg)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count records")
	}
	return n, nil
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete record %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: delete record %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scannable) (*StoredRecord, error) {
	var (
		rec          StoredRecord
		recordJSON   string
		analysisJSON sql.NullString
		capturedAt   string
	)
	if err := row.Scan(&rec.ID, &recordJSON, &rec.CreatorName, &rec.AccountName, &analysisJSON, &capturedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(sqliteTime, capturedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse captured_at %q", capturedAt)
	}
	rec.CapturedAt = t
	var analysis []byte
	if analysisJSON.Valid {
		analysis = []byte(analysisJSON.String)
	}
	if err := decode(&rec, []byte(recordJSON), analysis); err != nil {
		return nil, err
	}
	return &rec, nil
}
