package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/MrEthical07/credcore/refresh/refreshtest"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStore(db), mock
}

func expectCutoffLock(mock sqlmock.Sqlmock, subject string, cutoff time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subject_revocations")).
		WithArgs(subject).
		WillReturnRows(sqlmock.NewRows([]string{"cutoff"}).AddRow(cutoff))
}

func TestCreateStoresDigest(t *testing.T) {
	s, mock := newMockStore(t)
	rec := refreshtest.NewRecord(t, "42", time.Now(), time.Hour)

	mock.ExpectBegin()
	expectCutoffLock(mock, "42", time.Unix(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(rec.ID, digest(rec.Value), "42", rec.FamilyID, rec.CreatedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Create(context.Background(), rec))
}

func TestCreateMapsErrors(t *testing.T) {
	s, mock := newMockStore(t)
	rec := refreshtest.NewRecord(t, "42", time.Now(), time.Hour)

	mock.ExpectBegin()
	expectCutoffLock(mock, "42", time.Unix(0, 0))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectCutoffLock(mock, "42", time.Unix(0, 0))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	mock.ExpectBegin().WillReturnError(errors.New("too many clients"))

	assert.ErrorIs(t, s.Create(context.Background(), rec), refresh.ErrConflict)
	assert.ErrorIs(t, s.Create(context.Background(), rec), refresh.ErrStorageUnavailable)
	assert.ErrorIs(t, s.Create(context.Background(), rec), refresh.ErrStorageUnavailable)
}

func TestCreateRefusesRecordBeforeSubjectCutoff(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now()
	rec := refreshtest.NewRecord(t, "42", at, time.Hour)

	mock.ExpectBegin()
	expectCutoffLock(mock, "42", at)
	mock.ExpectRollback()

	err := s.Create(context.Background(), rec)
	assert.ErrorIs(t, err, refresh.ErrSubjectRevoked)
	assert.NotErrorIs(t, err, refresh.ErrStorageUnavailable)
}

func TestFindByValue(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	rec := refreshtest.NewRecord(t, "42", now, time.Hour)
	usedAt := now.Add(time.Minute)

	cols := []string{"id", "subject_id", "family_id", "created_at", "expires_at", "used", "used_at", "revoked", "revoked_at"}
	mock.ExpectQuery("SELECT id, subject_id").
		WithArgs(digest(rec.Value)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			rec.ID.String(), "42", rec.FamilyID.String(), rec.CreatedAt, rec.ExpiresAt, true, usedAt, false, nil,
		))

	got, err := s.FindByValue(context.Background(), rec.Value)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.FamilyID, got.FamilyID)
	assert.Equal(t, rec.Value, got.Value)
	assert.True(t, got.Used)
	require.NotNil(t, got.UsedAt)
	assert.True(t, got.UsedAt.Equal(usedAt))
	assert.False(t, got.Revoked)
	assert.Nil(t, got.RevokedAt)
}

func TestFindByValueErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, subject_id").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, subject_id").WillReturnError(errors.New("timeout"))

	_, err := s.FindByValue(context.Background(), "v")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = s.FindByValue(context.Background(), "v")
	assert.ErrorIs(t, err, refresh.ErrStorageUnavailable)
}

func TestMarkUsedSwap(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(digest("v"), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	swapped, err := s.MarkUsed(context.Background(), "v", at)
	require.NoError(t, err)
	assert.True(t, swapped)
}

func TestMarkUsedAlreadyUsed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(digest("v")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	swapped, err := s.MarkUsed(context.Background(), "v", time.Now())
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestMarkRevokedUnknown(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := s.MarkRevoked(context.Background(), "v", time.Now())
	assert.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestMarkUsedBackendFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").WillReturnError(errors.New("broken pipe"))
	mock.ExpectRollback()

	_, err := s.MarkUsed(context.Background(), "v", time.Now())
	assert.ErrorIs(t, err, refresh.ErrStorageUnavailable)
}

func TestRevokeAllForSubject(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("GREATEST(subject_revocations.cutoff, EXCLUDED.cutoff)")).
		WithArgs("42", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("created_at <= $2")).
		WithArgs("42", at).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := s.RevokeAllForSubject(context.Background(), "42", at)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRevokeAllForSubjectRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subject_revocations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE refresh_tokens").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := s.RevokeAllForSubject(context.Background(), "42", time.Now())
	assert.ErrorIs(t, err, refresh.ErrStorageUnavailable)
}

func TestMarkUsedSkipsRevoked(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("NOT used AND NOT revoked")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	swapped, err := s.MarkUsed(context.Background(), "v", time.Now())
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	_, err = s.Ping(context.Background())
	require.NoError(t, err)
	_, err = s.Ping(context.Background())
	assert.ErrorIs(t, err, refresh.ErrStorageUnavailable)
}
