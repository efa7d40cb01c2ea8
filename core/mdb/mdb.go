/*
Package mdb manages the process-wide MongoDB connection and the per-tenant
database handles.

The underlying client is established lazily on the first Resolve and shared by
all tenants; each tenant name maps to exactly one cached mongo.Database handle.
Handles live for the process lifetime, there is no eviction. The get-or-create
path is mutex-guarded, so concurrent first-time resolution of the same tenant
yields a single handle.
*/
package mdb

import (
	"context"
	"sync"

	"github.com/bakelog-tech/bakelog/core/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Resolver hands out per-tenant database handles over one shared client.
type Resolver struct {
	uri string

	mu        sync.Mutex
	client    *mongo.Client
	databases map[string]*mongo.Database
}

// NewResolver creates a resolver for the given connection URI. The connection
// itself is established on first use.
func NewResolver(uri string) *Resolver {
	return &Resolver{
		uri:       uri,
		databases: make(map[string]*mongo.Database),
	}
}

// Resolve returns the database handle for the given tenant name, creating and
// caching it on first reference.
func (r *Resolver) Resolve(ctx context.Context, tenant string) (*mongo.Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.databases[tenant]; ok {
		return db, nil
	}
	if err := r.connectLocked(ctx); err != nil {
		return nil, err
	}
	db := r.client.Database(tenant)
	r.databases[tenant] = db
	return db, nil
}

// Ping verifies connectivity to the store.
func (r *Resolver) Ping(ctx context.Context) error {
	r.mu.Lock()
	if err := r.connectLocked(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	client := r.client
	r.mu.Unlock()
	return client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client. The resolver must not be used afterwards.
func (r *Resolver) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Disconnect(ctx)
	r.client = nil
	r.databases = make(map[string]*mongo.Database)
	return err
}

func (r *Resolver) connectLocked(ctx context.Context) error {
	if r.client != nil {
		return nil
	}
	logger.Default().Debugln("connecting to mongodb:", r.uri)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(r.uri))
	if err != nil {
		return err
	}
	r.client = client
	return nil
}
