// Package bootstrap opens the backends selected by configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"chatapp/config"
	"chatapp/internal/repository"
	"chatapp/internal/repository/memory"
	"chatapp/internal/repository/mongostore"
	"chatapp/pkg/database"
	"chatapp/pkg/logger"
)

// Backend is an opened storage driver. Exactly one of SQL and Mongo is set
// for the database drivers, neither for memory.
type Backend struct {
	Store repository.Store
	SQL   *sql.DB
	Mongo *database.MongoDB
}

func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := database.ConnectPostgres(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		log.Infof("Connected to postgres at %s:%s", cfg.DBHost, cfg.DBPort)
		return &Backend{Store: repository.NewPostgresStore(db), SQL: db}, nil
	case config.DriverMongo:
		db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		log.Infof("Connected to mongo database %s", cfg.MongoDB)
		return &Backend{Store: mongostore.NewStore(db), Mongo: db}, nil
	case config.DriverMemory:
		log.Warnf("Using in-memory storage, data is lost on restart")
		return &Backend{Store: memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Migrate creates the postgres schema or the mongo indexes.
func (b *Backend) Migrate(ctx context.Context) error {
	switch {
	case b.SQL != nil:
		return repository.InitSchema(ctx, b.SQL)
	case b.Mongo != nil:
		return mongostore.EnsureIndexes(ctx, b.Mongo)
	default:
		return nil
	}
}
