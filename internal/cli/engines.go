package cli

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/critbun"
	"github.com/lemmego/criteria/critgorm"
	"github.com/lemmego/criteria/critmem"
	"github.com/lemmego/criteria/critmongo"
	"github.com/lemmego/criteria/critredis"
	"github.com/lemmego/criteria/critsql"
)

// Engine names accepted by --engine.
const (
	EngineBun    = "bun"
	EngineGorm   = "gorm"
	EngineSQL    = "sql"
	EngineMemory = "memory"
	EngineMongo  = "mongo"
	EngineRedis  = "redis"
)

// Person is the demo entity. It carries the tags of every engine.
type Person struct {
	bun.BaseModel `bun:"table:people,alias:p" gorm:"-" bson:"-" json:"-"`

	ID   string `bun:"id,pk" gorm:"primaryKey;size:36" db:"id" bson:"_id" json:"id"`
	Name string `bun:"name,notnull" gorm:"size:100;not null" db:"name" bson:"name" json:"name"`
	Age  int    `bun:"age,notnull" gorm:"not null" db:"age" bson:"age" json:"age"`
}

// TableName sets the gorm table.
func (Person) TableName() string { return "people" }

var (
	NameEquals     = criteria.Define[string]("nameEquals")
	AgeGreaterThan = criteria.Define[int]("ageGreaterThan")
)

// seed is the data every engine starts with.
func seed() []*Person {
	return []*Person{
		{ID: "1", Name: "Ann", Age: 25},
		{ID: "2", Name: "Ann", Age: 40},
		{ID: "3", Name: "Bob", Age: 20},
	}
}

// openEngine builds a repository for engine. The returned provider is nil
// for the memory engine.
func openEngine(ctx context.Context, engine string, cfg criteria.Config, logger *zap.Logger) (criteria.Repository[Person], criteria.Provider, error) {
	repoOpts := []criteria.RepositoryOption{criteria.WithLogger(logger)}

	switch engine {
	case EngineBun:
		provider, err := critbun.NewProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := critbun.NewRepository[Person](provider.DB(), bunRegistry(), repoOpts...)
		if err := repo.CreateTable(ctx); err != nil {
			provider.Close()
			return nil, nil, err
		}
		return repo, provider, nil

	case EngineGorm:
		provider, err := critgorm.NewProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := critgorm.NewRepository[Person](provider.DB(), gormRegistry(), repoOpts...)
		if err := repo.Migrate(ctx); err != nil {
			provider.Close()
			return nil, nil, err
		}
		return repo, provider, nil

	case EngineSQL:
		db, err := critsql.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		if _, err := db.ExecContext(ctx,
			`CREATE TABLE IF NOT EXISTS people (id VARCHAR(36) PRIMARY KEY, name VARCHAR(100) NOT NULL, age INTEGER NOT NULL)`); err != nil {
			db.Close()
			return nil, nil, err
		}
		repo, err := critsql.NewRepository[Person](db, "people", sqlRegistry(), repoOpts...)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db, nil

	case EngineMemory:
		repo := critmem.NewRepository[Person](memRegistry(), personID, personOrderings(), repoOpts...)
		return repo, nil, nil

	case EngineMongo:
		provider, err := critmongo.NewProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := critmongo.NewRepository[Person](provider.Collection("people"), mongoRegistry(), repoOpts...)
		return repo, provider, nil

	case EngineRedis:
		provider, err := critredis.NewProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := critredis.NewRepository[Person](provider.Client(), "people", memRegistry(),
			personID, personOrderings(), repoOpts...)
		return repo, provider, nil

	default:
		return nil, nil, criteria.NewError(criteria.ErrorTypeUnsupported, fmt.Sprintf("unknown engine: %s", engine))
	}
}

func personID(p *Person) string { return p.ID }

func personOrderings() critmem.Orderings[Person] {
	return critmem.Orderings[Person]{
		"id":   critmem.By(func(p *Person) string { return p.ID }),
		"name": critmem.By(func(p *Person) string { return p.Name }),
		"age":  critmem.By(func(p *Person) int { return p.Age }),
	}
}

func bunRegistry() *critbun.Registry {
	return critbun.MustRegistry("people",
		criteria.Handle(NameEquals, func(q *bun.SelectQuery, name string) (*bun.SelectQuery, schema.QueryAppender, error) {
			return q, bun.SafeQuery("p.name = ?", name), nil
		}),
		criteria.Handle(AgeGreaterThan, func(q *bun.SelectQuery, age int) (*bun.SelectQuery, schema.QueryAppender, error) {
			return q, bun.SafeQuery("p.age > ?", age), nil
		}),
	)
}

func gormRegistry() *critgorm.Registry {
	return critgorm.MustRegistry("people",
		criteria.Handle(NameEquals, func(q *gorm.DB, name string) (*gorm.DB, clause.Expression, error) {
			return q, clause.Eq{Column: clause.Column{Name: "name"}, Value: name}, nil
		}),
		criteria.Handle(AgeGreaterThan, func(q *gorm.DB, age int) (*gorm.DB, clause.Expression, error) {
			return q, clause.Gt{Column: clause.Column{Name: "age"}, Value: age}, nil
		}),
	)
}

func sqlRegistry() *critsql.Registry {
	return critsql.MustRegistry("people",
		criteria.Handle(NameEquals, func(q squirrel.SelectBuilder, name string) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			return q, squirrel.Eq{"people.name": name}, nil
		}),
		criteria.Handle(AgeGreaterThan, func(q squirrel.SelectBuilder, age int) (squirrel.SelectBuilder, squirrel.Sqlizer, error) {
			return q, squirrel.Gt{"people.age": age}, nil
		}),
	)
}

func memRegistry() *critmem.Registry[Person] {
	return critmem.MustRegistry[Person]("people",
		criteria.Handle(NameEquals, func(p critmem.Plan, name string) (critmem.Plan, critmem.Predicate[Person], error) {
			return p, func(e *Person) bool { return e.Name == name }, nil
		}),
		criteria.Handle(AgeGreaterThan, func(p critmem.Plan, age int) (critmem.Plan, critmem.Predicate[Person], error) {
			return p, func(e *Person) bool { return e.Age > age }, nil
		}),
	)
}

func mongoRegistry() *critmongo.Registry {
	return critmongo.MustRegistry("people",
		criteria.Handle(NameEquals, func(p mongo.Pipeline, name string) (mongo.Pipeline, bson.D, error) {
			return p, bson.D{{Key: "name", Value: name}}, nil
		}),
		criteria.Handle(AgeGreaterThan, func(p mongo.Pipeline, age int) (mongo.Pipeline, bson.D, error) {
			return p, bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: age}}}}, nil
		}),
	)
}
