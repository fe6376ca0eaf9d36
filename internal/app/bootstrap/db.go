// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/taskspace/internal/app/system/indexes"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/dalemusser/taskspace/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the users and workspaces MongoDB clients.
//
// The whole sequence (connect + ping both) is retried after BootRetryDelay
// up to BootRetryAttempts times, so the app can start before its databases
// are reachable. A canceled ctx stops the retry loop.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	attempts := appCfg.BootRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deps, err := connectOnce(ctx, appCfg, logger)
		if err == nil {
			logger.Info("connected to MongoDB",
				zap.String("users_database", appCfg.UsersMongoDatabase),
				zap.String("workspaces_database", appCfg.WorkspacesMongoDatabase),
				zap.Int("attempt", attempt))
			return deps, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		logger.Warn("database connection failed; retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", appCfg.BootRetryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return DBDeps{}, ctx.Err()
		case <-time.After(appCfg.BootRetryDelay):
		}
	}
	return DBDeps{}, fmt.Errorf("connect databases after %d attempts: %w", attempts, lastErr)
}

func connectOnce(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	usersClient, err := connectClient(ctx, appCfg.UsersMongoURI, appCfg)
	if err != nil {
		return DBDeps{}, fmt.Errorf("users: %w", err)
	}
	wsClient, err := connectClient(ctx, appCfg.WorkspacesMongoURI, appCfg)
	if err != nil {
		disconnect(usersClient, logger)
		return DBDeps{}, fmt.Errorf("workspaces: %w", err)
	}

	return DBDeps{
		UsersMongoClient:        usersClient,
		UsersMongoDatabase:      usersClient.Database(appCfg.UsersMongoDatabase),
		WorkspacesMongoClient:   wsClient,
		WorkspacesMongoDatabase: wsClient.Database(appCfg.WorkspacesMongoDatabase),
		bg:                      &background{},
	}, nil
}

func connectClient(ctx context.Context, uri string, appCfg AppConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	cctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, err
	}

	pctx, pcancel := context.WithTimeout(ctx, timeouts.Medium())
	defer pcancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func disconnect(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("MongoDB disconnect failed", zap.Error(err))
	}
}

// EnsureSchema creates indexes and attaches collection validators.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ictx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if err := indexes.EnsureAll(ictx, deps.UsersMongoDatabase, deps.WorkspacesMongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	if err := validators.EnsureAll(ictx, deps.UsersMongoDatabase, deps.WorkspacesMongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	return nil
}
