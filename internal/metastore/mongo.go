package metastore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"repoatlas/internal/model"
)

// MongoStore keeps documents in the "repositories" collection keyed by
// repository name.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

type mongoDoc struct {
	ID               string `bson:"_id"`
	model.Repository `bson:",inline"`
}

// ConnectMongo connects to uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, client.Database(database)), nil
}

// NewMongoStore wires the collection of db. The client is kept so Close can
// disconnect it; it may be nil when the caller owns the connection.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, col: db.Collection("repositories")}
}

// Save replaces the document for repo.Name, inserting it if absent.
func (s *MongoStore) Save(ctx context.Context, repo *model.Repository) error {
	if err := validateName(repo.Name); err != nil {
		return err
	}
	doc := mongoDoc{ID: repo.Name, Repository: *repo}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": repo.Name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save metadata %s: %w", repo.Name, err)
	}
	return nil
}

// Load fetches the document for name.
func (s *MongoStore) Load(ctx context.Context, name string) (*model.Repository, error) {
	var doc mongoDoc
	err := s.col.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata %s: %w", name, err)
	}
	return &doc.Repository, nil
}

// List returns every stored repository name.
func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	cur, err := s.col.Find(ctx, bson.D{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer cur.Close(ctx)

	var ids []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	names := make([]string, len(ids))
	for i, d := range ids {
		names[i] = d.ID
	}
	sort.Strings(names)
	return names, nil
}

// Close disconnects the client if this store owns one.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
