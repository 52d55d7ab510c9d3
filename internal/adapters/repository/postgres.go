package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
)

const (
	defaultTable       = "readings"
	postgresPingWindow = 5 * time.Second
)

// PostgresStore writes one row per delivered reading. The full reading is
// kept as a JSON payload next to a few indexed columns.
type PostgresStore struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

// OpenPostgres opens a connection pool for dsn using the lib/pq driver and
// verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(15)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	s, err := NewPostgresStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing handle, pings it and makes sure the
// readings table exists.
func NewPostgresStore(ctx context.Context, db *sql.DB, opts ...PostgresOption) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	s := &PostgresStore{db: db, table: defaultTable, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingWindow)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("postgres store: create table: %w", err)
	}
	// Tables created before uuid was unique get the index here.
	if _, err := s.db.ExecContext(ctx, s.uuidIndexSQL()); err != nil {
		return fmt.Errorf("postgres store: create uuid index: %w", err)
	}
	return nil
}

func (s *PostgresStore) uuidIndexSQL() string {
	return "CREATE UNIQUE INDEX IF NOT EXISTS " + pq.QuoteIdentifier(s.table+"_uuid_key") +
		" ON " + pq.QuoteIdentifier(s.table) + " (uuid)"
}

func (s *PostgresStore) createTableSQL() string {
	return "CREATE TABLE IF NOT EXISTS " + pq.QuoteIdentifier(s.table) + ` (
	id BIGSERIAL PRIMARY KEY,
	uuid TEXT NOT NULL,
	asset_code TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	user_ts TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
)`
}

func (s *PostgresStore) insertSQL() string {
	return "INSERT INTO " + pq.QuoteIdentifier(s.table) +
		" (uuid, asset_code, ts, user_ts, payload) VALUES ($1, $2, $3, $4, $5)" +
		" ON CONFLICT (uuid) DO NOTHING"
}

// Append implements Store.Append inside a single transaction. Readings whose
// UUID is already stored are skipped.
func (s *PostgresStore) Append(ctx context.Context, batch model.Batch) (err error) {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn(ctx, "rollback failed", logger.Error(rbErr))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return fmt.Errorf("postgres store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if r == nil {
			continue
		}
		payload, mErr := json.Marshal(r)
		if mErr != nil {
			return fmt.Errorf("postgres store: encode reading %s: %w", r.UUID, mErr)
		}
		if _, err = stmt.ExecContext(ctx, r.UUID, r.AssetCode, r.Timestamp, r.UserTimestamp, payload); err != nil {
			return fmt.Errorf("postgres store: insert reading %s: %w", r.UUID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// Latest implements Store.Latest.
func (s *PostgresStore) Latest(ctx context.Context, n int) ([]*model.Reading, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	query := "SELECT payload FROM " + pq.QuoteIdentifier(s.table) + " ORDER BY id DESC LIMIT $1"
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query latest: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Reading, 0, n)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres store: scan: %w", err)
		}
		r := new(model.Reading)
		if err := json.Unmarshal(payload, r); err != nil {
			return nil, fmt.Errorf("postgres store: decode payload: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows: %w", err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM " + pq.QuoteIdentifier(s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
