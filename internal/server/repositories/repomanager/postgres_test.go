package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	var _ RepositoryManager = m

	var _ users.Repository = m.Users()
	assert.NotNil(t, m.Users())
}

func TestWithTx_CommitsAndRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)

	ts := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id,`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "full_name", "avatar", "cover_image",
			"password_hash", "refresh_token", "created_at", "updated_at"}).
			AddRow("u-1", "alice", "a@x", "A", "", "", "h", nil, ts, ts))
	mock.ExpectCommit()

	var got *models.User
	err = m.WithTx(context.Background(), func(ctx context.Context, repo users.Repository) error {
		var err error
		got, err = repo.FindByID(ctx, "u-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = m.WithTx(context.Background(), func(ctx context.Context, repo users.Repository) error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	require.NoError(t, m.RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	err := m.RunMigrations(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestClose(t *testing.T) {
	db, mock := newDB(t)
	mock.ExpectClose()

	m := &PostgresRepositoryManager{db: db}
	require.NoError(t, m.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
