package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medscan-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	storage, err := NewSQLiteStorage(dbPath, "")
	require.NoError(t, err)
	defer storage.Close()

	sess, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	user := testUser()
	require.NoError(t, storage.Save(ctx, domain.Session{User: &user, Token: "first"}))
	require.NoError(t, storage.Save(ctx, domain.Session{User: &user, Token: "second"}))

	sess, err = storage.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "second", sess.Token, "last writer wins")

	require.NoError(t, storage.Delete(ctx))
	sess, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSQLiteStorage_StoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	first, err := Open(ctx, domain.SessionConfig{Backend: "sqlite", Path: dbPath, Key: DefaultKey}, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.SetAuth(ctx, testUser(), "tok"))
	require.NoError(t, first.Close())

	second, err := Open(ctx, domain.SessionConfig{Backend: "sqlite", Path: dbPath, Key: DefaultKey}, testLogger())
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, "tok", second.Token())
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestSQLiteStorage_SchemaFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnError(errors.New("disk I/O error"))

	_, err := NewSQLiteStorageFromDB(db, "auth-storage")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_LoadQueryFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE key = ?")).
		WithArgs("auth-storage").
		WillReturnError(errors.New("database is locked"))

	storage, err := NewSQLiteStorageFromDB(db, "auth-storage")
	require.NoError(t, err)

	_, err = storage.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_LoadCorruptValue(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE key = ?")).
		WithArgs("auth-storage").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("{nope"))

	storage, err := NewSQLiteStorageFromDB(db, "auth-storage")
	require.NoError(t, err)

	_, err = storage.Load(context.Background())

	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_SaveFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO kv_store").WillReturnError(errors.New("readonly database"))

	storage, err := NewSQLiteStorageFromDB(db, "auth-storage")
	require.NoError(t, err)

	user := testUser()
	err = storage.Save(context.Background(), domain.Session{User: &user, Token: "tok"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save session")
	assert.NoError(t, mock.ExpectationsWereMet())
}
