// Package store opens the configured persistence backend behind the
// repository contracts.
package store

import (
	"context"
	"fmt"

	"nerdtalk/internal/config"
	"nerdtalk/internal/database"
	"nerdtalk/internal/docstore"
	"nerdtalk/internal/repository"
)

// Handle is an open backend.
type Handle struct {
	Stores  repository.Stores
	Backend string
	close   func(context.Context) error
}

// Close releases the backend's connections.
func (h *Handle) Close(ctx context.Context) error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close(ctx)
}

// Open connects the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (*Handle, error) {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		ds, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("document store connection failed: %w", err)
		}
		return &Handle{Stores: ds.Stores(), Backend: config.StoreMongo, close: ds.Disconnect}, nil

	case config.StoreSQL, "":
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		closeDB := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return &Handle{Stores: repository.NewSQLStores(db), Backend: config.StoreSQL, close: closeDB}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
