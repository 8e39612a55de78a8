package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var gotDSN string
	c := New(WithOpener(func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	}))

	cfg := database.Config{Host: "localhost", User: "root", Schema: "shop"}
	require.NoError(t, c.Open(context.Background(), cfg))
	require.NotEmpty(t, gotDSN)
	return c, mock
}

func TestConn_RunSelect(t *testing.T) {
	c, mock := newMockConn(t)

	mock.ExpectQuery("SELECT * FROM `users` LIMIT 0,1000").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).
			AddRow(int64(1), []byte("ann"), nil).
			AddRow(int64(2), []byte("bob"), []byte("vip")))

	affected, rows, err := c.Run(context.Background(), "SELECT * FROM `users` LIMIT 0,1000")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	require.Len(t, rows, 2)
	assert.True(t, rows[0][0].Equal(value.Int(1)))
	assert.True(t, rows[0][1].Equal(value.Text("ann")))
	assert.True(t, rows[0][2].IsNil())
	assert.Equal(t, "vip", rows[1][2].AsString())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_RunSelectAfterComment(t *testing.T) {
	c, mock := newMockConn(t)

	query := "/* report */ SELECT id FROM `users`"
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	affected, rows, err := c.Run(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.Len(t, rows, 1)
	assert.True(t, rows[0][0].Equal(value.Int(7)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_RunExecReportsAffected(t *testing.T) {
	c, mock := newMockConn(t)

	mock.ExpectExec("DELETE FROM `users`").WillReturnResult(sqlmock.NewResult(0, 3))

	affected, rows, err := c.Run(context.Background(), "DELETE FROM `users`")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_RunMapsServerErrors(t *testing.T) {
	c, mock := newMockConn(t)

	mock.ExpectQuery("SELECT * FROM `nope`").
		WillReturnError(&gomysql.MySQLError{Number: 1146, Message: "Table 'shop.nope' doesn't exist"})

	_, _, err := c.Run(context.Background(), "SELECT * FROM `nope`")
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestConn_Rollback(t *testing.T) {
	c, mock := newMockConn(t)

	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, c.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c, mock := newMockConn(t)
	mock.ExpectClose()

	assert.True(t, c.IsOpen())
	require.NoError(t, c.Close())
	assert.False(t, c.IsOpen())
	require.NoError(t, c.Close())

	_, _, err := c.Run(context.Background(), "SELECT 1")
	assert.True(t, errs.IsNotConnected(err))
}

func TestClientOverMySQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	cfg := database.DefaultConfig()
	cfg.Table = "people"
	client := database.NewClient(cfg, New(WithOpener(func(string) (*sql.DB, error) { return db, nil })), nil)
	require.NoError(t, client.Connect(context.Background()))

	mock.ExpectExec("INSERT INTO `people` (`name`) VALUES ('O\\'Brien')").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rs, err := client.Insert(context.Background(), []value.Row{{value.Text("O'Brien")}}, []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rs.Affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, returnsRows("select 1"))
	assert.True(t, returnsRows("  (SELECT 1) UNION (SELECT 2)"))
	assert.True(t, returnsRows("SHOW TABLES"))
	assert.False(t, returnsRows("UPDATE t SET a=1"))
	assert.False(t, returnsRows("ROLLBACK"))
	assert.False(t, returnsRows(""))

	assert.True(t, returnsRows("/* report */ SELECT id FROM `users`"))
	assert.True(t, returnsRows("-- nightly\nSELECT 1"))
	assert.True(t, returnsRows("# nightly\n  /* a */ /* b */ (SELECT 1)"))
	assert.False(t, returnsRows("/* SELECT */ DELETE FROM `users`"))
	assert.False(t, returnsRows("/* unterminated SELECT"))
	assert.False(t, returnsRows("-- SELECT"))
}

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(database.Config{
		Host:           "db.internal",
		User:           "app",
		Password:       "p@ss",
		Schema:         "shop",
		ConnectTimeout: 5 * time.Second,
	})

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 5*time.Second, parsed.Timeout)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"auth", &gomysql.MySQLError{Number: 1045, Message: "Access denied"}, errs.ErrKindAuthFailed},
		{"db access", &gomysql.MySQLError{Number: 1044}, errs.ErrKindPermissionDenied},
		{"unknown db", &gomysql.MySQLError{Number: 1049}, errs.ErrKindConnectionFailed},
		{"syntax", &gomysql.MySQLError{Number: 1064}, errs.ErrKindQueryFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no rows", sql.ErrNoRows, errs.ErrKindNotFound},
		{"bad conn", gomysql.ErrInvalidConn, errs.ErrKindConnectionFailed},
		{"other", errors.New("boom"), errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errs.KindOf(mapError(tt.err, "op")))
		})
	}

	assert.NoError(t, mapError(nil, "op"))
}
