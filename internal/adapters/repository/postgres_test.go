package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/okian/scalefilter/internal/domain/model"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "readings"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE UNIQUE INDEX IF NOT EXISTS "readings_uuid_key" ON "readings" (uuid)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewPostgresStore(context.Background(), db)
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	return store, mock
}

func TestPostgresStore_NilDB(t *testing.T) {
	if _, err := NewPostgresStore(context.Background(), nil); !errors.Is(err, ErrNilDB) {
		t.Fatalf("expected ErrNilDB, got %v", err)
	}
}

func TestPostgresStore_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if _, err := NewPostgresStore(context.Background(), db); err == nil {
		t.Fatal("expected ping error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := newMockStore(t)

	a := reading("pump", 1500)
	b := reading("fan", 30)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "readings" (uuid, asset_code, ts, user_ts, payload) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (uuid) DO NOTHING`))
	prep.ExpectExec().
		WithArgs(a.UUID, "pump", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(b.UUID, "fan", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := store.Append(context.Background(), model.Batch{a, b}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_AppendRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "readings"`))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := store.Append(context.Background(), model.Batch{reading("pump", 1)}); err == nil {
		t.Fatal("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_AppendEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	if err := store.Append(context.Background(), model.Batch{}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_Latest(t *testing.T) {
	store, mock := newMockStore(t)

	newer, err := json.Marshal(reading("fan", 30))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	older, err := json.Marshal(reading("pump", 1500))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rows := sqlmock.NewRows([]string{"payload"}).AddRow(newer).AddRow(older)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM "readings" ORDER BY id DESC LIMIT $1`)).
		WithArgs(2).
		WillReturnRows(rows)

	latest, err := store.Latest(context.Background(), 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(latest))
	}
	if latest[0].AssetCode != "fan" || latest[1].AssetCode != "pump" {
		t.Errorf("unexpected order: %s, %s", latest[0].AssetCode, latest[1].AssetCode)
	}
	if got := latest[1].Datapoints[0].Value.Int(); got != 1500 {
		t.Errorf("expected 1500, got %d", got)
	}

	if _, err := store.Latest(context.Background(), -1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_CountAndClose(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "readings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectClose()

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_CustomTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "scaled readings"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE UNIQUE INDEX IF NOT EXISTS "scaled readings_uuid_key" ON "scaled readings" (uuid)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := NewPostgresStore(context.Background(), db, WithTable("scaled readings")); err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
