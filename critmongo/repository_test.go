package critmongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lemmego/criteria"
)

type Person struct {
	ID   string   `bson:"_id"`
	Name string   `bson:"name"`
	Age  int      `bson:"age"`
	Team string   `bson:"team,omitempty"`
	Tags []string `bson:"tags,omitempty"`
}

var (
	NameEquals     = criteria.Define[string]("nameEquals")
	AgeGreaterThan = criteria.Define[int]("ageGreaterThan")
	TeamCity       = criteria.Define[string]("teamCity")
)

func peopleRegistry() *Registry {
	return MustRegistry("people",
		criteria.Handle(NameEquals, func(p mongo.Pipeline, name string) (mongo.Pipeline, bson.D, error) {
			return p, bson.D{{Key: "name", Value: name}}, nil
		}),
		criteria.Handle(AgeGreaterThan, func(p mongo.Pipeline, age int) (mongo.Pipeline, bson.D, error) {
			return p, bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: age}}}}, nil
		}),
		criteria.Handle(TeamCity, func(p mongo.Pipeline, city string) (mongo.Pipeline, bson.D, error) {
			p = append(p, bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: "teams"},
				{Key: "localField", Value: "team"},
				{Key: "foreignField", Value: "_id"},
				{Key: "as", Value: "team_doc"},
			}}})
			return p, bson.D{{Key: "team_doc.city", Value: city}}, nil
		}),
	)
}

func TestAlgebra(t *testing.T) {
	a := bson.D{{Key: "a", Value: 1}}
	b := bson.D{{Key: "b", Value: 2}}

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{a, b}}}, Algebra{}.And(a, b))
	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{a, b}}}, Algebra{}.Or(a, b))
	assert.Equal(t, bson.D{{Key: "$nor", Value: bson.A{a}}}, Algebra{}.Not(a))
}

func TestFindPipeline(t *testing.T) {
	repo := NewRepository[Person](nil, peopleRegistry())

	pipeline, err := repo.FindPipeline(
		criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30))),
		criteria.OrderBy("age", criteria.OrderDesc),
		criteria.OrderBy("_id", criteria.OrderAsc),
		criteria.Offset(5),
		criteria.Limit(10),
	)
	require.NoError(t, err)

	want := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "name", Value: "Ann"}},
			bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}}},
			}}},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "age", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$skip", Value: int64(5)}},
		{{Key: "$limit", Value: int64(10)}},
	}
	assert.Equal(t, want, pipeline)
}

func TestMatchPipelineKeepsLeafStages(t *testing.T) {
	repo := NewRepository[Person](nil, peopleRegistry())

	pipeline, err := repo.MatchPipeline(criteria.Either(TeamCity.Of("Oslo"), NameEquals.Of("Bob")))
	require.NoError(t, err)
	require.Len(t, pipeline, 2)
	assert.Equal(t, "$lookup", pipeline[0][0].Key)
	assert.Equal(t, "$match", pipeline[1][0].Key)

	pipeline, err = repo.MatchPipeline(criteria.AllOf(TeamCity.Of("Oslo"), TeamCity.Of("Lima")))
	require.NoError(t, err)
	assert.Len(t, pipeline, 3)
}

func TestFindPipelineErrors(t *testing.T) {
	repo := NewRepository[Person](nil, peopleRegistry())

	_, err := repo.FindPipeline(criteria.Leaf{Kind: "cityEquals", Payload: "Oslo"})
	assert.True(t, criteria.IsUnknownCriteria(err))

	_, err = repo.FindPipeline(criteria.AnyOf())
	assert.True(t, criteria.IsMalformedCriteria(err))
}

func TestIDOf(t *testing.T) {
	repo := NewRepository[Person](nil, peopleRegistry())

	id, err := repo.idOf(&Person{ID: "p-1", Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", id.StringValue())

	type anonymous struct {
		Name string `bson:"name"`
	}
	other := NewRepository[anonymous](nil, peopleRegistry())
	_, err = other.idOf(&anonymous{Name: "Ann"})
	assert.True(t, criteria.IsErrorType(err, criteria.ErrorTypeInvalidArgument))
}

func TestConnectionURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", ConnectionURI(criteria.Config{}))
	assert.Equal(t, "mongodb://ann:secret@db:27018/app?tls=true&tlsCAFile=/ca.pem",
		ConnectionURI(criteria.Config{
			Host: "db", Port: 27018, Database: "app", Username: "ann", Password: "secret",
			SSL: criteria.SSLConfig{Enabled: true, CAFile: "/ca.pem"},
		}))
	assert.Equal(t, "mongodb+srv://cluster", ConnectionURI(criteria.Config{ConnectionURL: "mongodb+srv://cluster", Host: "ignored"}))
}

func TestConvertMongoError(t *testing.T) {
	assert.NoError(t, convertMongoError(nil))
	assert.True(t, criteria.IsNotFound(convertMongoError(mongo.ErrNoDocuments)))
	assert.True(t, criteria.IsDuplicate(convertMongoError(mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	})))
	assert.True(t, criteria.IsValidation(convertMongoError(mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 121, Message: "Document failed validation"}},
	})))
	assert.True(t, criteria.IsValidation(convertMongoError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 121, Message: "Document failed validation"}}},
	})))
	assert.True(t, criteria.IsDuplicate(convertMongoError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000, Message: "E11000 duplicate key error"}}},
	})))
	assert.True(t, criteria.IsErrorType(convertMongoError(mongo.CommandError{Code: 251, Message: "no such transaction"}),
		criteria.ErrorTypeTransaction))
	assert.True(t, criteria.IsConnection(convertMongoError(mongo.ErrClientDisconnected)))
	assert.True(t, criteria.IsErrorType(convertMongoError(errors.New("boom")), criteria.ErrorTypeDatabase))
}

// Integration tests below run against CRITERIA_MONGO_URI.

func setupTestRepository(t *testing.T) (*Repository[Person], *Provider, func()) {
	uri := os.Getenv("CRITERIA_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB tests: CRITERIA_MONGO_URI not set")
	}

	provider, err := NewProvider(criteria.Config{Driver: "mongodb", ConnectionURL: uri, Database: "criteria_test"})
	if err != nil {
		t.Skipf("Skipping MongoDB tests: %v", err)
	}

	collection := provider.Collection("people_" + uuid.NewString())
	repo := NewRepository[Person](collection, peopleRegistry())

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx,
		&Person{ID: "1", Name: "Ann", Age: 25, Team: "core"},
		&Person{ID: "2", Name: "Ann", Age: 40, Team: "infra"},
		&Person{ID: "3", Name: "Bob", Age: 20, Team: "core"},
	))

	cleanup := func() {
		collection.Drop(context.Background())
		provider.Database().Collection("teams").Drop(context.Background())
		provider.Close()
	}
	return repo, provider, cleanup
}

func ids(people []*Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

func TestRepositoryFind(t *testing.T) {
	repo, _, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	found, err := repo.Find(ctx, criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30))))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(found))

	found, err = repo.Find(ctx, criteria.Either(NameEquals.Of("Ann"), AgeGreaterThan.Of(30)),
		criteria.OrderBy("_id", criteria.OrderAsc))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(found))

	found, err = repo.Find(ctx, criteria.AnyOf(NameEquals.Of("Ann"), NameEquals.Of("Bob")),
		criteria.OrderBy("age", criteria.OrderDesc), criteria.Offset(1), criteria.Limit(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(found))

	found, err = repo.Find(ctx, AgeGreaterThan.Of(99))
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestRepositoryFindWithLookup(t *testing.T) {
	repo, provider, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	_, err := provider.Database().Collection("teams").InsertMany(ctx, []interface{}{
		bson.D{{Key: "_id", Value: "core"}, {Key: "city", Value: "Oslo"}},
		bson.D{{Key: "_id", Value: "infra"}, {Key: "city", Value: "Lima"}},
	})
	require.NoError(t, err)

	found, err := repo.Find(ctx, criteria.AllOf(TeamCity.Of("Oslo"), criteria.Not(NameEquals.Of("Bob"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(found))
}

func TestRepositoryExistsGetRemove(t *testing.T) {
	repo, _, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	exists, err := repo.Exists(ctx, AgeGreaterThan.Of(30))
	require.NoError(t, err)
	assert.True(t, exists)

	person, err := repo.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 40, person.Age)

	require.NoError(t, repo.Save(ctx, &Person{ID: "2", Name: "Ann", Age: 41}))
	person, err = repo.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 41, person.Age)

	require.NoError(t, repo.Remove(ctx, person))
	require.NoError(t, repo.RemoveByID(ctx, "3"))

	_, err = repo.Get(ctx, "2")
	assert.True(t, criteria.IsNotFound(err))

	exists, err = repo.Exists(ctx, NameEquals.Of("Bob"))
	require.NoError(t, err)
	assert.False(t, exists)
}
