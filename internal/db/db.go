// Package db opens the configured credential store backend.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// Closer releases the connection pool behind a store.
type Closer func(ctx context.Context) error

// OpenStore connects to the backend named by cfg.Driver. When migrate is set
// the SQL schema is brought up to date first. MongoDB indexes are always
// ensured since email uniqueness depends on them.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger, migrate bool) (store.Store, Closer, error) {
	switch cfg.Driver {
	case "mongo":
		client, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewMongoStore(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return s, client.Disconnect, nil
	case "postgres", "sqlite":
		gdb, err := OpenSQL(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewGormStore(gdb)
		if migrate {
			if err := s.AutoMigrate(); err != nil {
				return nil, nil, fmt.Errorf("db: migrate: %w", err)
			}
		}
		closer := func(context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return s, closer, nil
	default:
		return nil, nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// OpenSQL opens a gorm pool. PostgreSQL connections are retried to give the
// database time to start alongside the server. Statements are logged without
// their bound values so digests and emails stay out of the logs.
func OpenSQL(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logging.NewGormLogger(log, cfg.SlowQuery, false),
	}

	if cfg.Driver == "sqlite" {
		gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		return gdb, nil
	}

	log.Info(ctx, "connecting to database",
		"host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBName, "user", cfg.User)

	var (
		gdb *gorm.DB
		err error
	)
	for i := 1; i <= connectAttempts; i++ {
		gdb, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err == nil {
			return gdb, nil
		}
		log.Warn(ctx, "database connection failed", "attempt", i, "of", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("db: connect postgres: %w", err)
}

// OpenMongo connects and pings the MongoDB deployment at cfg.MongoURI.
func OpenMongo(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("db: connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("db: ping mongo: %w", err)
	}
	return client, nil
}
