// Package critmongo provides a MongoDB adapter for criteria repositories.
// Criteria translate into bson.D filters matched against an aggregation
// pipeline, which leaf translators may extend with $lookup or $unwind stages.
package critmongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lemmego/criteria"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements criteria.Provider using MongoDB
type Provider struct {
	client   *mongo.Client
	database *mongo.Database
	config   criteria.Config
}

var _ criteria.Provider = (*Provider)(nil)

// NewProvider connects to MongoDB and pings the primary.
func NewProvider(config criteria.Config) (*Provider, error) {
	clientOpts := options.Client().ApplyURI(ConnectionURI(config))
	applyClientOptions(clientOpts, config)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to connect to MongoDB", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to ping MongoDB", err)
	}

	return &Provider{
		client:   client,
		database: client.Database(config.Database),
		config:   config,
	}, nil
}

// ConnectionURI builds a mongodb:// URI, unless ConnectionURL is set.
func ConnectionURI(config criteria.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	uri += fmt.Sprintf("%s:%d", host, port)

	if config.Database != "" {
		uri += "/" + config.Database
	}

	if config.SSL.Enabled {
		uri += "?tls=true"
		if config.SSL.CAFile != "" {
			uri += "&tlsCAFile=" + config.SSL.CAFile
		}
		if config.SSL.CertFile != "" {
			uri += "&tlsCertificateKeyFile=" + config.SSL.CertFile
		}
	}

	return uri
}

// applyClientOptions applies the pool settings of config and the "mongo"
// adapter options.
func applyClientOptions(clientOpts *options.ClientOptions, config criteria.Config) {
	if config.MaxOpenConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(config.MaxOpenConns))
	}
	if config.ConnMaxIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(config.ConnMaxIdleTime)
	}

	mongoOpts := config.Option("mongo")
	if maxPoolSize, ok := mongoOpts["max_pool_size"].(int); ok {
		clientOpts.SetMaxPoolSize(uint64(maxPoolSize))
	}
	if minPoolSize, ok := mongoOpts["min_pool_size"].(int); ok {
		clientOpts.SetMinPoolSize(uint64(minPoolSize))
	}
	if appName, ok := mongoOpts["app_name"].(string); ok {
		clientOpts.SetAppName(appName)
	}
}

// Database returns the configured database.
func (p *Provider) Database() *mongo.Database {
	return p.database
}

// Collection returns a handle for the named collection.
func (p *Provider) Collection(name string) *mongo.Collection {
	return p.database.Collection(name)
}

// Health pings the primary.
func (p *Provider) Health(ctx context.Context) error {
	if err := p.client.Ping(ctx, readpref.Primary()); err != nil {
		return convertMongoError(err)
	}
	return nil
}

// Close disconnects the client.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Disconnect(ctx)
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() criteria.ProviderInfo {
	return criteria.ProviderInfo{
		Name:         "mongo",
		Version:      "1.0.0",
		DatabaseType: criteria.DatabaseTypeDocument,
		Dialect:      "mongodb",
	}
}
