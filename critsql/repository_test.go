package critsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lemmego/criteria"
)

type Person struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Age  int    `db:"age"`
}

var errMissingName = errors.New("name is required")

func (p *Person) Validate(context.Context) error {
	if p.Name == "" {
		return errMissingName
	}
	return nil
}

var (
	NameEquals     = criteria.Define[string]("nameEquals")
	AgeGreaterThan = criteria.Define[int]("ageGreaterThan")
	HasTag         = criteria.Define[string]("hasTag")
	IDIn           = criteria.Define[[]string]("idIn")
)

func peopleRegistry() *Registry {
	return MustRegistry("people",
		criteria.Handle(NameEquals, func(q squirrel.SelectBuilder, name string) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			return q, squirrel.Eq{"people.name": name}, nil
		}),
		criteria.Handle(AgeGreaterThan, func(q squirrel.SelectBuilder, age int) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			return q, squirrel.Gt{"people.age": age}, nil
		}),
		criteria.Handle(HasTag, func(q squirrel.SelectBuilder, tag string) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			alias := fmt.Sprintf("t_%s", tag)
			q = q.LeftJoin(fmt.Sprintf("tags %s ON %s.person_id = people.id AND %s.tag = ?", alias, alias, alias), tag)
			return q, squirrel.Expr(alias + ".tag IS NOT NULL"), nil
		}),
		criteria.Handle(IDIn, func(q squirrel.SelectBuilder, ids []string) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			return q, squirrel.Eq{"people.id": ids}, nil
		}),
	)
}

type SQLRepositoryTestSuite struct {
	suite.Suite
	db   *DB
	repo *Repository[Person]
	ctx  context.Context
}

func (suite *SQLRepositoryTestSuite) SetupSuite() {
	db, err := Open(criteria.Config{Driver: "sqlite3", Database: ":memory:"})
	require.NoError(suite.T(), err)

	suite.db = db
	suite.ctx = context.Background()

	_, err = db.ExecContext(suite.ctx, `CREATE TABLE people (id TEXT PRIMARY KEY, name TEXT NOT NULL, age INTEGER NOT NULL)`)
	require.NoError(suite.T(), err)
	_, err = db.ExecContext(suite.ctx, `CREATE TABLE tags (person_id TEXT NOT NULL, tag TEXT NOT NULL)`)
	require.NoError(suite.T(), err)

	repo, err := NewRepository[Person](db, "people", peopleRegistry())
	require.NoError(suite.T(), err)
	suite.repo = repo
}

func (suite *SQLRepositoryTestSuite) TearDownSuite() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SQLRepositoryTestSuite) SetupTest() {
	_, err := suite.db.ExecContext(suite.ctx, `DELETE FROM people`)
	require.NoError(suite.T(), err)
	_, err = suite.db.ExecContext(suite.ctx, `DELETE FROM tags`)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.repo.Save(suite.ctx,
		&Person{ID: "1", Name: "Ann", Age: 25},
		&Person{ID: "2", Name: "Ann", Age: 40},
		&Person{ID: "3", Name: "Bob", Age: 20},
	))
	_, err = suite.db.ExecContext(suite.ctx,
		`INSERT INTO tags (person_id, tag) VALUES ('1', 'admin'), ('3', 'admin'), ('3', 'ops')`)
	require.NoError(suite.T(), err)
}

func TestSQLRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SQLRepositoryTestSuite))
}

func (suite *SQLRepositoryTestSuite) TestProviderInfo() {
	info := suite.db.ProviderInfo()
	assert.Equal(suite.T(), "sql", info.Name)
	assert.Equal(suite.T(), criteria.DialectSQLite, info.Dialect)
	assert.NoError(suite.T(), suite.db.Health(suite.ctx))
}

func (suite *SQLRepositoryTestSuite) TestFindAnnNotOlderThanThirty() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30))))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), found, 1)
	assert.Equal(suite.T(), "1", found[0].ID)
}

func (suite *SQLRepositoryTestSuite) TestFindXor() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.Either(NameEquals.Of("Bob"), AgeGreaterThan.Of(30)),
		criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestFindNegatedCompound() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.Not(criteria.AnyOf(NameEquals.Of("Bob"), AgeGreaterThan.Of(30))))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestFindWithJoiningLeaves() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.AllOf(HasTag.Of("admin"), criteria.Not(HasTag.Of("ops"))))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1"}, ids(found))

	found, err = suite.repo.Find(suite.ctx,
		criteria.AnyOf(HasTag.Of("ops"), AgeGreaterThan.Of(30)),
		criteria.OrderBy("age", criteria.OrderDesc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))

	exists, err := suite.repo.Exists(suite.ctx, criteria.AllOf(HasTag.Of("ops"), NameEquals.Of("Ann")))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *SQLRepositoryTestSuite) TestSingleChildComposites() {
	found, err := suite.repo.Find(suite.ctx, criteria.And{Children: []criteria.Criteria{
		NameEquals.Of("Ann"),
		criteria.Or{Children: []criteria.Criteria{AgeGreaterThan.Of(30)}},
	}})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2"}, ids(found))

	found, err = suite.repo.Find(suite.ctx, criteria.Or{Children: []criteria.Criteria{
		criteria.And{Children: []criteria.Criteria{NameEquals.Of("Bob")}},
		AgeGreaterThan.Of(30),
	}}, criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestKeyLeafUnderOrAndNot() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.AnyOf(IDIn.Of([]string{"1"}), IDIn.Of([]string{"2"})),
		criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1", "2"}, ids(found))

	found, err = suite.repo.Find(suite.ctx, criteria.Not(IDIn.Of([]string{"1"})), criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))

	found, err = suite.repo.Find(suite.ctx,
		criteria.AnyOf(IDIn.Of([]string{"1"}), NameEquals.Of("Bob")),
		criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1", "3"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestFindOrderedAndPaginated() {
	all := criteria.AnyOf(NameEquals.Of("Ann"), NameEquals.Of("Bob"))

	found, err := suite.repo.Find(suite.ctx, all,
		criteria.OrderBy("age", criteria.OrderAsc), criteria.Limit(2))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"3", "1"}, ids(found))

	found, err = suite.repo.Find(suite.ctx, all,
		criteria.OrderBy("age", criteria.OrderAsc), criteria.Offset(1))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1", "2"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestFindRejectsUnknownOrderColumn() {
	_, err := suite.repo.Find(suite.ctx, NameEquals.Of("Ann"),
		criteria.OrderBy("age; DROP TABLE people", criteria.OrderAsc))
	require.Error(suite.T(), err)
	assert.True(suite.T(), criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))
}

func (suite *SQLRepositoryTestSuite) TestFindNoMatches() {
	found, err := suite.repo.Find(suite.ctx, criteria.AllOf(NameEquals.Of("Bob"), AgeGreaterThan.Of(30)))
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), found)
	assert.Empty(suite.T(), found)
}

func (suite *SQLRepositoryTestSuite) TestExists() {
	exists, err := suite.repo.Exists(suite.ctx, AgeGreaterThan.Of(30))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	exists, err = suite.repo.Exists(suite.ctx, AgeGreaterThan.Of(50))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *SQLRepositoryTestSuite) TestUnknownCriteria() {
	_, err := suite.repo.Find(suite.ctx, criteria.AllOf(NameEquals.Of("Ann"), criteria.Leaf{Kind: "cityEquals"}))
	require.Error(suite.T(), err)
	assert.True(suite.T(), criteria.IsUnknownCriteria(err))

	_, err = suite.repo.Exists(suite.ctx, criteria.Leaf{Kind: "cityEquals"})
	assert.True(suite.T(), criteria.IsUnknownCriteria(err))
}

func (suite *SQLRepositoryTestSuite) TestMalformedCriteria() {
	_, err := suite.repo.Find(suite.ctx, criteria.Not(criteria.And{}))
	require.Error(suite.T(), err)
	assert.True(suite.T(), criteria.IsMalformedCriteria(err))
}

func (suite *SQLRepositoryTestSuite) TestGet() {
	person, err := suite.repo.Get(suite.ctx, "2")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), Person{ID: "2", Name: "Ann", Age: 40}, *person)

	_, err = suite.repo.Get(suite.ctx, "missing")
	require.Error(suite.T(), err)
	assert.True(suite.T(), criteria.IsNotFound(err))
}

func (suite *SQLRepositoryTestSuite) TestSaveUpserts() {
	require.NoError(suite.T(), suite.repo.Save(suite.ctx, &Person{ID: "3", Name: "Bob", Age: 35}))

	person, err := suite.repo.Get(suite.ctx, "3")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 35, person.Age)

	found, err := suite.repo.Find(suite.ctx, AgeGreaterThan.Of(30), criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))
}

func (suite *SQLRepositoryTestSuite) TestSaveValidation() {
	err := suite.repo.Save(suite.ctx, &Person{ID: "4", Name: "Eve", Age: 30}, &Person{ID: "5"})
	require.Error(suite.T(), err)
	assert.ErrorIs(suite.T(), err, errMissingName)

	_, err = suite.repo.Get(suite.ctx, "4")
	assert.True(suite.T(), criteria.IsNotFound(err))
}

func (suite *SQLRepositoryTestSuite) TestRemove() {
	require.NoError(suite.T(), suite.repo.Remove(suite.ctx, &Person{ID: "1"}))
	require.NoError(suite.T(), suite.repo.RemoveByID(suite.ctx, "2", "missing"))

	found, err := suite.repo.Find(suite.ctx, criteria.AnyOf(NameEquals.Of("Ann"), NameEquals.Of("Bob")))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"3"}, ids(found))

	assert.NoError(suite.T(), suite.repo.RemoveByID(suite.ctx))
	assert.True(suite.T(), criteria.IsErrorType(suite.repo.Remove(suite.ctx, nil), criteria.ErrorTypeInvalidArgument))
}

func ids(people []*Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

type tagless struct {
	Key string `db:"key"`
}

func TestNewRepositoryRequiresIDColumn(t *testing.T) {
	db, err := Open(criteria.Config{Driver: "sqlite3", Database: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	_, err = NewRepository[tagless](db, "things", MustRegistry("things"))
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))

	_, err = NewRepository[tagless](db, "things", MustRegistry("things"), criteria.WithIDField("key"))
	assert.NoError(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(criteria.Config{Driver: "sqlserver"})
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeUnsupported))

	_, err = Open(criteria.Config{Driver: "oracle"})
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeUnsupported))
}

func TestBuilderPlaceholders(t *testing.T) {
	pg := &DB{dialect: criteria.DialectPostgres}
	query, _, err := pg.Builder().Select("id").From("people").Where(squirrel.Eq{"name": "Ann"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM people WHERE name = $1", query)

	lite := &DB{dialect: criteria.DialectSQLite}
	query, _, err = lite.Builder().Select("id").From("people").Where(squirrel.Eq{"name": "Ann"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM people WHERE name = ?", query)
}

func TestNotWrapsCompoundCondition(t *testing.T) {
	cond := Algebra{}.Not(Algebra{}.And(squirrel.Eq{"a": 1}, squirrel.Eq{"b": 2}))
	query, args, err := cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "NOT ((a = ? AND b = ?))", query)
	assert.Equal(t, []interface{}{1, 2}, args)
}

func TestUpsertSuffix(t *testing.T) {
	lite := &Repository[Person]{db: &DB{dialect: criteria.DialectSQLite}, columns: columnsOf[Person](),
		opts: criteria.ResolveOptions("people")}
	assert.Equal(t, "ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, age = EXCLUDED.age", lite.upsertSuffix())

	my := &Repository[Person]{db: &DB{dialect: criteria.DialectMySQL}, columns: columnsOf[Person](),
		opts: criteria.ResolveOptions("people")}
	assert.Equal(t, "ON DUPLICATE KEY UPDATE name = VALUES(name), age = VALUES(age)", my.upsertSuffix())

	onlyID := &Repository[tagless]{db: &DB{dialect: criteria.DialectPostgres}, columns: columnsOf[tagless](),
		opts: criteria.ResolveOptions("things", criteria.WithIDField("key"))}
	assert.Equal(t, "ON CONFLICT (key) DO NOTHING", onlyID.upsertSuffix())
}

func TestConvertSQLError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want criteria.ErrorType
	}{
		{"no rows", sql.ErrNoRows, criteria.ErrorTypeNotFound},
		{"tx done", sql.ErrTxDone, criteria.ErrorTypeTransaction},
		{"conn done", sql.ErrConnDone, criteria.ErrorTypeConnection},
		{"pq unique", &pq.Error{Code: "23505"}, criteria.ErrorTypeDuplicate},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, criteria.ErrorTypeDuplicate},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, criteria.ErrorTypeDuplicate},
		{"mysql lock timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, criteria.ErrorTypeTransaction},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, criteria.ErrorTypeDuplicate},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, criteria.ErrorTypeDuplicate},
		{"connection", errors.New("dial tcp: connection refused"), criteria.ErrorTypeConnection},
		{"other", errors.New("syntax error"), criteria.ErrorTypeDatabase},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := convertSQLError(tc.err)
			assert.True(t, criteria.IsErrorType(err, tc.want), "got %v", err)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.NoError(t, convertSQLError(nil))
}
