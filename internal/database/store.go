package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"approval-ledger/internal/config"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/repository"

	"gorm.io/gorm"
)

const mongoConnectTimeout = 10 * time.Second

// OpenStore builds the Document Store selected by cfg.Store.Driver. For the
// postgres driver db is reused when given and opened from cfg otherwise. The
// returned func releases whatever OpenStore opened.
func OpenStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (ledger.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store.Driver {
	case config.StoreFile:
		slog.Info("using file document store", "path", cfg.Store.File)
		return repository.NewDocumentFileStore(cfg.Store.File), noop, nil

	case config.StoreMongo:
		client, err := NewMongoConnection(ctx, cfg.Mongo.URI, mongoConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using mongo document store", "db", cfg.Mongo.DBName, "collection", cfg.Mongo.Collection)
		store := repository.NewDocumentMongoStore(client.Database(cfg.Mongo.DBName), cfg.Mongo.Collection)
		return store, client.Disconnect, nil

	case config.StorePostgres:
		closer := noop
		if db == nil {
			var err error
			db, err = NewConnection(cfg.Database.DSN())
			if err != nil {
				return nil, nil, fmt.Errorf("connect postgres: %w", err)
			}
			closer = func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			}
		}
		slog.Info("using postgres document store")
		return repository.NewDocumentRepository(db, repository.NewTransactionManager(db)), closer, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
