package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	platform     TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	record       JSONB NOT NULL,
	creator_name TEXT NOT NULL DEFAULT '',
	account_name TEXT NOT NULL DEFAULT '',
	error_kind   TEXT NOT NULL DEFAULT '',
	analysis     JSONB,
	captured_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_captured_at ON records(captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_platform ON records(platform);
`

// recordColumns is the insert and COPY column order.
var recordColumns = []string{
	"id", "platform", "url", "record", "creator_name", "account_name", "error_kind", "analysis", "captured_at",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func postgresRow(rec *StoredRecord) ([]any, error) {
	rec.prepare()
	enc, err := encode(rec)
	if err != nil {
		return nil, err
	}
	var analysis any
	if enc.analysis != nil {
		analysis = enc.analysis
	}
	return []any{
		rec.ID, string(rec.Record.Platform), rec.Record.URL, enc.record,
		rec.CreatorName, rec.AccountName, string(rec.Record.ErrorKind), analysis,
		rec.CapturedAt,
	}, nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *StoredRecord) error {
	row, err := postgresRow(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, platform, url, record, creator_name, account_name, error_kind, analysis, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row...,
	)
	return eris.Wrapf(err, "postgres: insert record %s", rec.ID)
}

// SaveRecords bulk-loads recs with COPY.
func (s *PostgresStore) SaveRecords(ctx context.Context, recs []*StoredRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		row, err := postgresRow(rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	n, err := db.CopyFrom(ctx, s.pool, "records", recordColumns, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save records")
	}
	if int(n) != len(rows) {
		return eris.Errorf("postgres: save records: copied %d of %d rows", n, len(rows))
	}
	return nil
}

const postgresSelect = `SELECT id, record, creator_name, account_name, analysis, captured_at FROM records`

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*StoredRecord, error) {
	rec, err := scanPostgresRecord(s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return rec, nil
}

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func postgresTimeArg(t time.Time) any { return t.UTC() }

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error) {
	where, args := whereClause(filter, postgresPlaceholder, postgresTimeArg)
	args = append(args, filter.limit())
	query := postgresSelect + where + fmt.Sprintf(` ORDER BY captured_at DESC, id LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) CountRecords(ctx context.Context, filter RecordFilter) (int, error) {
	where, args := whereClause(filter, postgresPlaceholder, postgresTimeArg)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count records")
	}
	return n, nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete record %s", id)
	}
	return nil
}

func scanPostgresRecord(row pgx.Row) (*StoredRecord, error) {
	var (
		rec          StoredRecord
		recordJSON   []byte
		analysisJSON []byte
	)
	if err := row.Scan(&rec.ID, &recordJSON, &rec.CreatorName, &rec.AccountName, &analysisJSON, &rec.CapturedAt); err != nil {
		return nil, err
	}
	rec.CapturedAt = rec.CapturedAt.UTC()
	if err := decode(&rec, recordJSON, analysisJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}
