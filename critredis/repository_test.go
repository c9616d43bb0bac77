package critredis

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/critmem"
)

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

var (
	NameEquals     = criteria.Define[string]("nameEquals")
	AgeGreaterThan = criteria.Define[int]("ageGreaterThan")
	IDIn           = criteria.Define[[]string]("idIn")
)

func peopleRegistry() *critmem.Registry[Person] {
	return critmem.MustRegistry[Person]("people",
		criteria.Handle(NameEquals, func(p critmem.Plan, name string) (critmem.Plan, critmem.Predicate[Person], error) {
			return p, func(e *Person) bool { return e.Name == name }, nil
		}),
		criteria.Handle(AgeGreaterThan, func(p critmem.Plan, age int) (critmem.Plan, critmem.Predicate[Person], error) {
			return p, func(e *Person) bool { return e.Age > age }, nil
		}),
		criteria.Handle(IDIn, func(p critmem.Plan, ids []string) (critmem.Plan, critmem.Predicate[Person], error) {
			set := make(map[string]bool, len(ids))
			for _, id := range ids {
				set[id] = true
			}
			return p.Restrict(ids...), func(e *Person) bool { return set[e.ID] }, nil
		}),
	)
}

func personID(p *Person) string { return p.ID }

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(criteria.Config{
		Host:         "cache",
		Port:         6380,
		Database:     "15",
		Password:     "secret",
		MaxOpenConns: 20,
		Options: map[string]interface{}{
			"redis": map[string]interface{}{
				"dial_timeout": 2 * time.Second,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 15, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = clientOptions(criteria.Config{})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = clientOptions(criteria.Config{ConnectionURL: "redis://:pw@example:7000/3"})
	require.NoError(t, err)
	assert.Equal(t, "example:7000", opts.Addr)
	assert.Equal(t, 3, opts.DB)

	_, err = clientOptions(criteria.Config{Database: "zero"})
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))

	_, err = clientOptions(criteria.Config{ConnectionURL: "http://not-redis"})
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))
}

func TestConvertRedisError(t *testing.T) {
	assert.NoError(t, convertRedisError(nil))
	assert.True(t, criteria.IsNotFound(convertRedisError(redis.Nil)))
	assert.True(t, criteria.IsErrorType(convertRedisError(redis.TxFailedErr), criteria.ErrorTypeTransaction))
	assert.True(t, criteria.IsConnection(convertRedisError(redis.ErrClosed)))
	assert.True(t, criteria.IsConnection(convertRedisError(&net.OpError{Op: "dial", Err: errors.New("refused")})))
	assert.True(t, criteria.IsErrorType(convertRedisError(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")),
		criteria.ErrorTypeSerialization))
	assert.True(t, criteria.IsErrorType(convertRedisError(errors.New("ERR syntax error")), criteria.ErrorTypeDatabase))
}

func TestUniqueKeys(t *testing.T) {
	assert.Equal(t, []string{"p:1", "p:2", "p:3"}, uniqueKeys([]string{"p:1", "p:2", "p:1", "p:3", "p:2"}))
	assert.Empty(t, uniqueKeys(nil))
}

// RedisRepositoryTestSuite runs against the server at CRITERIA_REDIS_ADDR.
type RedisRepositoryTestSuite struct {
	suite.Suite
	provider *Provider
	repo     *Repository[Person]
	prefix   string
	ctx      context.Context
}

func (suite *RedisRepositoryTestSuite) SetupSuite() {
	addr := os.Getenv("CRITERIA_REDIS_ADDR")
	if addr == "" {
		suite.T().Skip("Skipping Redis tests: CRITERIA_REDIS_ADDR not set")
	}

	provider, err := NewProvider(criteria.Config{Driver: "redis", ConnectionURL: "redis://" + addr + "/15"})
	if err != nil {
		suite.T().Skipf("Skipping Redis tests: %v", err)
	}

	suite.ctx = context.Background()
	suite.provider = provider
	suite.prefix = "people-" + uuid.NewString()
	suite.repo = NewRepository[Person](provider.Client(), suite.prefix, peopleRegistry(), personID, critmem.Orderings[Person]{
		"id":  critmem.By(func(p *Person) string { return p.ID }),
		"age": critmem.By(func(p *Person) int { return p.Age }),
	})
}

func (suite *RedisRepositoryTestSuite) TearDownSuite() {
	if suite.provider != nil {
		suite.provider.Close()
	}
}

func (suite *RedisRepositoryTestSuite) SetupTest() {
	require.NoError(suite.T(), suite.repo.RemoveByID(suite.ctx, "1", "2", "3", "4"))
	require.NoError(suite.T(), suite.repo.Save(suite.ctx,
		&Person{ID: "1", Name: "Ann", Age: 25},
		&Person{ID: "2", Name: "Ann", Age: 40},
		&Person{ID: "3", Name: "Bob", Age: 20},
	))
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func (suite *RedisRepositoryTestSuite) TestFind() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30))))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"1"}, ids(found))

	found, err = suite.repo.Find(suite.ctx,
		criteria.Either(NameEquals.Of("Bob"), AgeGreaterThan.Of(30)),
		criteria.OrderBy("id", criteria.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "3"}, ids(found))

	found, err = suite.repo.Find(suite.ctx,
		criteria.AnyOf(NameEquals.Of("Ann"), NameEquals.Of("Bob")),
		criteria.OrderBy("age", criteria.OrderDesc), criteria.Limit(2))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2", "1"}, ids(found))
}

func (suite *RedisRepositoryTestSuite) TestFindRestrictedKeys() {
	found, err := suite.repo.Find(suite.ctx,
		criteria.AllOf(IDIn.Of([]string{"2", "3", "missing"}), criteria.Not(NameEquals.Of("Bob"))))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2"}, ids(found))
}

func (suite *RedisRepositoryTestSuite) TestFindRestrictingLeafUnderOrAndNot() {
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

	found, err = suite.repo.Find(suite.ctx,
		criteria.AllOf(IDIn.Of([]string{"1", "2"}), criteria.Or{Children: []criteria.Criteria{AgeGreaterThan.Of(30)}}))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2"}, ids(found))

	exists, err := suite.repo.Exists(suite.ctx, criteria.Either(IDIn.Of([]string{"1"}), NameEquals.Of("Ann")))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)
}

func (suite *RedisRepositoryTestSuite) TestFindErrors() {
	_, err := suite.repo.Find(suite.ctx, criteria.Leaf{Kind: "cityEquals"})
	assert.True(suite.T(), criteria.IsUnknownCriteria(err))

	_, err = suite.repo.Find(suite.ctx, NameEquals.Of("Ann"), criteria.OrderBy("name", criteria.OrderAsc))
	assert.True(suite.T(), criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))
}

func (suite *RedisRepositoryTestSuite) TestExistsGetRemove() {
	exists, err := suite.repo.Exists(suite.ctx, AgeGreaterThan.Of(30))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	person, err := suite.repo.Get(suite.ctx, "3")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), Person{ID: "3", Name: "Bob", Age: 20}, *person)

	require.NoError(suite.T(), suite.repo.Remove(suite.ctx, person))
	_, err = suite.repo.Get(suite.ctx, "3")
	assert.True(suite.T(), criteria.IsNotFound(err))

	exists, err = suite.repo.Exists(suite.ctx, NameEquals.Of("Bob"))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *RedisRepositoryTestSuite) TestSaveWithTTL() {
	repo := suite.repo.WithTTL(time.Minute)
	require.NoError(suite.T(), repo.Save(suite.ctx, &Person{ID: "4", Name: "Eve", Age: 33}))

	ttl, err := suite.provider.Client().TTL(suite.ctx, suite.prefix+":4").Result()
	require.NoError(suite.T(), err)
	assert.Greater(suite.T(), ttl, time.Duration(0))
}

func ids(people []*Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}
