package migrate

import (
	"context"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectEnsureTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_seeds")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestSplitStatementsKeepsDollarBodies(t *testing.T) {
	src := `create table t (v text default 'a;b');
create function f() returns trigger as $$
begin
  raise exception 'no; way';
end;
$$ language plpgsql;
select 1`
	stmts := splitStatements(src)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "'a;b'")
	assert.Contains(t, stmts[1], "raise exception 'no; way';")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stmts[1]), "plpgsql;"))
	assert.Equal(t, "select 1", strings.TrimSpace(stmts[2]))
}

func TestBundledMigrationsArePaired(t *testing.T) {
	ups, err := collectSQL(Migrations(), ".up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := strings.TrimSuffix(up.Base, ".up.sql") + ".down.sql"
		_, err := fs.Stat(Migrations(), down)
		assert.NoError(t, err, "missing %s", down)
	}
	seeds, err := collectSQL(Seeds(), ".sql")
	require.NoError(t, err)
	assert.NotEmpty(t, seeds)
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"0002_b.up.sql":   {Data: []byte("create table b (id int);")},
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
	}
	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name, applied_at)")).
		WithArgs("0002_b.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	m := NewManager(db, fsys, nil)
	require.NoError(t, m.Up(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
	}
	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations order by applied_at asc")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("drop table a;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("delete from schema_migrations where name = $1")).
		WithArgs("0001_a.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewManager(db, fsys, nil)
	require.NoError(t, m.Down(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithoutHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations order by applied_at asc")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	m := NewManager(db, fstest.MapFS{}, nil)
	assert.EqualError(t, m.Down(context.Background()), "no migrations applied")
}

func TestPendingListsUnapplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_a.up.sql": {Data: []byte("select 1;")},
		"0002_b.up.sql": {Data: []byte("select 2;")},
	}
	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))

	m := NewManager(db, fsys, nil)
	pending, err := m.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.up.sql"}, pending)
}
