package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepositoryManager vends MongoDB-backed repositories sharing one client.
type MongoRepositoryManager struct {
	client  *mongo.Client
	users   *users.MongoRepository
	uploads *uploads.MongoRepository
}

// OpenMongo connects to uri and uses database dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoRepositoryManager, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}
	return NewMongoRepositoryManager(client, client.Database(dbName)), nil
}

func NewMongoRepositoryManager(client *mongo.Client, db *mongo.Database) *MongoRepositoryManager {
	return &MongoRepositoryManager{
		client:  client,
		users:   users.NewMongoRepository(db),
		uploads: uploads.NewMongoRepository(db),
	}
}

func (m *MongoRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MongoRepositoryManager) Uploads() uploads.Repository {
	return m.uploads
}

// RunMigrations creates the collections' indexes. Creating an existing
// index is a no-op in MongoDB.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	if err := m.users.EnsureIndexes(ctx); err != nil {
		return err
	}
	return m.uploads.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
