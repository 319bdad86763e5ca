// Package docstore implements the repository contracts on MongoDB. Reply logs
// and post sets live inside their owner documents and are maintained with
// single-document $push, $addToSet and $pull updates.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store holds the client and the three collections.
type Store struct {
	client      *mongo.Client
	posts       *mongo.Collection
	users       *mongo.Collection
	communities *mongo.Collection
}

// Connect dials uri, verifies the connection and ensures indexes on dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:      client,
		posts:       db.Collection("posts"),
		users:       db.Collection("users"),
		communities: db.Collection("communities"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	middleware.Logger.Info("Connected to MongoDB", slog.String("database", dbName))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "nerdtalks", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	if _, err := s.communities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "nerdtalks", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create community indexes: %w", err)
	}
	return nil
}

// Stores exposes the document implementations through the repository contracts.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Posts:       &postStore{s: s},
		Index:       &indexStore{s: s},
		Users:       &userStore{s: s},
		Communities: &communityStore{s: s},
		Ping: func(ctx context.Context) error {
			return s.client.Ping(ctx, readpref.Primary())
		},
	}
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.posts.Database().Drop(ctx)
}

// Disconnect closes the client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// translate maps driver errors onto the application error kinds.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, context.Canceled):
		return models.NewCanceledError(err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return models.NewStorageUnavailableError(err)
	default:
		return models.NewInternalError(err)
	}
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
