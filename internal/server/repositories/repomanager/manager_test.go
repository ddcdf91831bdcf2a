package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestPostgresManager_ImplementsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var m RepositoryManager = NewPostgresRepositoryManager(db)

	if m.Users() == nil {
		t.Fatal("Users() nil")
	}
	if m.Uploads() == nil {
		t.Fatal("Uploads() nil")
	}

	var _ users.Repository = m.Users()
	var _ uploads.Repository = m.Uploads()
}

func TestPostgresManager_PingAndClose(t *testing.T) {
	db, mock := newDB(t)

	mock.ExpectPing()
	mock.ExpectClose()

	m := NewPostgresRepositoryManager(db)
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if got != db {
			return errors.New("unexpected db")
		}
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	for _, dsn := range []string{"mysql://root@localhost/db", "file.db", "::bad"} {
		_, err := Open(context.Background(), dsn)
		if !errors.Is(err, common.ErrConfig) {
			t.Fatalf("dsn %q: expected ErrConfig, got %v", dsn, err)
		}
	}
}

func TestOpen_Memory(t *testing.T) {
	m, err := Open(context.Background(), "memory://")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if _, ok := m.(*MemoryRepositoryManager); !ok {
		t.Fatalf("expected memory manager, got %T", m)
	}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if m.Users() == nil || m.Uploads() == nil {
		t.Fatal("nil repositories")
	}
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}

func TestDatabaseName(t *testing.T) {
	tests := map[string]string{
		"mongodb://localhost:27017":               "weavekeeper",
		"mongodb://localhost:27017/":              "weavekeeper",
		"mongodb://user:pw@localhost:27017/vault": "vault",
		"mongodb+srv://cluster.example.net/files": "files",
	}
	for dsn, want := range tests {
		u, err := url.Parse(dsn)
		if err != nil {
			t.Fatalf("parse %q: %v", dsn, err)
		}
		if got := databaseName(u); got != want {
			t.Errorf("databaseName(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestMongoManager_RunMigrations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates indexes for both collections", func(mt *mtest.T) {
		ok := bson.D{{Key: "ok", Value: 1}}
		mt.AddMockResponses(ok, ok)

		m := NewMongoRepositoryManager(mt.Client, mt.DB)
		if err := m.RunMigrations(context.Background()); err != nil {
			mt.Fatalf("RunMigrations error: %v", err)
		}
		var _ RepositoryManager = m
	})

	mt.Run("propagates index errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Message: "IndexOptionsConflict"}))

		m := NewMongoRepositoryManager(mt.Client, mt.DB)
		if err := m.RunMigrations(context.Background()); err == nil {
			mt.Fatal("expected error")
		}
	})
}
