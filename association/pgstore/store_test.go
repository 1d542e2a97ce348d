package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/authlink/association"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{"auth_id", "user_id", "deleted", "created_at", "updated_at"}

var userColumns = []string{"user_id", "auth_id", "deleted", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestGetAuthIDRecordsPreservesInputOrder(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(recordColumns).
		AddRow("a1", "u1", false, now, now).
		AddRow("a3", "u3", true, now, now)
	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE auth_id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]string{"a3", "a2", "a1"})).
		WillReturnRows(rows)

	got, err := store.GetAuthIDRecords(ctx, []string{"a3", "a2", "a1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u3", got[0].UserID)
	assert.True(t, got[0].Deleted)
	assert.Nil(t, got[1])
	assert.Equal(t, "u1", got[2].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserAuthRecordsNullReference(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(userColumns).AddRow("u1", nil, false, now, now)
	mock.ExpectQuery("SELECT (.+) FROM user_auth_details WHERE user_id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]string{"u1"})).
		WillReturnRows(rows)

	got, err := store.GetUserAuthRecords(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.NotNil(t, got[0])
	assert.Equal(t, "", got[0].AuthID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyBatchesSkipDatabase(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	auths, err := store.GetAuthIDRecords(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, auths)
	require.NoError(t, store.PutAuthIDRecords(ctx, nil))
	require.NoError(t, store.PutUserAuthRecords(ctx, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutAuthIDRecordsUpsertsInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO auth_id_associations (.+) ON CONFLICT \\(auth_id\\) DO UPDATE").
		WithArgs("a1", "u1", false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO auth_id_associations (.+) ON CONFLICT \\(auth_id\\) DO UPDATE").
		WithArgs("a2", "u2", true, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.PutAuthIDRecords(context.Background(), []*association.AuthIDRecord{
		{AuthID: "a1", UserID: "u1", CreatedAt: now, UpdatedAt: now},
		{AuthID: "a2", UserID: "u2", Deleted: true, CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutUserAuthRecordsStoresNullForEmptyReference(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_auth_details").
		WithArgs("u1", nil, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.PutUserAuthRecords(context.Background(), []*association.UserAuthRecord{
		{UserID: "u1", CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_auth_details").
		WithArgs("u1", "a1", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.PutUserAuthRecords(context.Background(), []*association.UserAuthRecord{{UserID: "u1", AuthID: "a1"}})
	assert.ErrorIs(t, err, association.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAuthIDRecordByUserID(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE user_id = \\$1").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("a1", "u1", false, now, now))
	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE user_id = \\$1").
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	rec, err := store.FindAuthIDRecordByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a1", rec.AuthID)

	rec, err = store.FindAuthIDRecordByUserID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanAuthIDRecordsPagesByKey(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE auth_id > \\$1 ORDER BY auth_id LIMIT \\$2").
		WithArgs("", 2).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("a1", "u1", false, now, now).
			AddRow("a2", "u2", false, now, now))
	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE auth_id > \\$1 ORDER BY auth_id LIMIT \\$2").
		WithArgs("a2", 2).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("a3", "u3", true, now, now))

	var seen []string
	err := store.ScanAuthIDRecords(context.Background(), 2, func(batch []*association.AuthIDRecord) error {
		for _, rec := range batch {
			seen = append(seen, rec.AuthID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFailureIsStoreUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM user_auth_details").
		WillReturnError(errors.New("connection refused"))

	_, err := store.GetUserAuthRecords(context.Background(), []string{"u1"})
	assert.ErrorIs(t, err, association.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceOverPostgres(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := association.NewService(store, store, association.WithClock(func() time.Time { return now }))

	mock.ExpectQuery("SELECT (.+) FROM auth_id_associations WHERE auth_id = ANY").
		WithArgs(pq.Array([]string{"a1"})).
		WillReturnRows(sqlmock.NewRows(recordColumns))
	mock.ExpectQuery("SELECT (.+) FROM user_auth_details WHERE user_id = ANY").
		WithArgs(pq.Array([]string{"u1"})).
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO auth_id_associations").
		WithArgs("a1", "u1", false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_auth_details").
		WithArgs("u1", "a1", false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Associate(context.Background(), association.Pair{AuthID: "a1", UserID: "u1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
