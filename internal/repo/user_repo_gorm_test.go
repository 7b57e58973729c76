package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-gin-gorm-auth/internal/domain"
)

var userCols = []string{
	"id", "email", "password_hash", "is_active", "login_attempts",
	"locked_until", "last_login_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewUserRepo(db), mock
}

func TestUserTx_FindByEmail_NotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectRollback()

	uow, err := r.Begin(context.Background())
	require.NoError(t, err)
	u, err := uow.FindByEmail("nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTx_FindByEmail_Found(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now().UTC().Truncate(time.Second)
	until := now.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@b.com", "$2a$04$x", true, 3, until, nil, now, now))
	mock.ExpectCommit()

	uow, err := r.Begin(context.Background())
	require.NoError(t, err)
	u, err := uow.FindByEmail("a@b.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, 3, u.LoginAttempts)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.LockedUntil)
	assert.True(t, u.LockedUntil.Equal(until))
	assert.Nil(t, u.LastLoginAt)
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTx_Insert_Duplicate(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	uow, err := r.Begin(context.Background())
	require.NoError(t, err)
	err = uow.Insert(&domain.User{ID: "u1", Email: "a@b.com", PasswordHash: "h", IsActive: true})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTx_Insert_OtherError(t *testing.T) {
	r, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(boom)
	mock.ExpectRollback()

	uow, err := r.Begin(context.Background())
	require.NoError(t, err)
	err = uow.Insert(&domain.User{ID: "u1", Email: "a@b.com", PasswordHash: "h", IsActive: true})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrDuplicateEmail)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTx_InsertAndUpdateCommit(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" SET .*"login_attempts"=.*"locked_until"=.* WHERE "id" = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	uow, err := r.Begin(context.Background())
	require.NoError(t, err)
	u := &domain.User{ID: "u1", Email: "a@b.com", PasswordHash: "h", IsActive: true}
	require.NoError(t, uow.Insert(u))
	u.LoginAttempts = 0
	u.LockedUntil = nil
	require.NoError(t, uow.Update(u))
	require.NoError(t, uow.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindByID(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@b.com", "h", false, 0, nil, now, now, now))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(userCols))

	u, err := r.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.False(t, u.IsActive)
	require.NotNil(t, u.LastLoginAt)

	u, err = r.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindByEmail_NoTransaction(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@b.com", "h", true, 2, nil, nil, now, now))

	u, err := r.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 2, u.LoginAttempts)
	// 没有 ExpectBegin：读快照不开事务
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_List(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "users" ORDER BY created_at desc`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u2", "b@b.com", "h", true, 0, nil, nil, now, now).
			AddRow("u1", "a@b.com", "h", true, 1, nil, nil, now, now))

	users, total, err := r.List(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_BeginError(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := r.Begin(context.Background())
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDupKey(t *testing.T) {
	assert.True(t, isDupKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDupKey(errors.New("Error 1062 (23000): Duplicate entry 'a@b.com' for key 'users.idx_users_email'")))
	assert.True(t, isDupKey(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, isDupKey(errors.New("timeout")))
}
